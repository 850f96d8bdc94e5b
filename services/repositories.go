package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fatoldnerd/sedemoscoring/config"
	"github.com/fatoldnerd/sedemoscoring/models"
)

var (
	ErrCallReviewNotFound        = errors.New("call review not found")
	ErrScorecardNotFound         = errors.New("scorecard not found")
	ErrScorecardAlreadySubmitted = errors.New("scorecard already submitted")
	ErrStatusConflict            = errors.New("call review status changed concurrently")
)

// ScorecardRepository is the storage boundary for scorecards. Cards are keyed
// by (callReviewID, scorerType); exactly three exist per review.
type ScorecardRepository interface {
	GetForReview(ctx context.Context, callReviewID string) ([]models.Scorecard, error)
	GetByType(ctx context.Context, callReviewID, scorerType string) (*models.Scorecard, error)
	Submit(ctx context.Context, callReviewID, scorerType string, scores models.SectionScores, comments, quotes models.SectionText, totalScore int, submittedAt time.Time) error
}

// CallReviewRepository is the storage boundary for call reviews.
// UpdateStatus is a compare-and-set: it only writes when the stored status
// still equals fromStatus, and reports ErrStatusConflict otherwise.
type CallReviewRepository interface {
	Get(ctx context.Context, id string) (*models.CallReview, error)
	Create(ctx context.Context, review *models.CallReview) error
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error
}

type scorecardStore struct {
	db *gorm.DB
}

// NewScorecardRepository returns a gorm-backed scorecard repository.
func NewScorecardRepository(db *gorm.DB) ScorecardRepository {
	if db == nil {
		db = config.DB
	}
	return &scorecardStore{db: db}
}

func (s *scorecardStore) GetForReview(ctx context.Context, callReviewID string) ([]models.Scorecard, error) {
	var cards []models.Scorecard
	if err := s.db.WithContext(ctx).
		Where("call_review_id = ?", callReviewID).
		Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch scorecards for review %s: %w", callReviewID, err)
	}
	return cards, nil
}

func (s *scorecardStore) GetByType(ctx context.Context, callReviewID, scorerType string) (*models.Scorecard, error) {
	var card models.Scorecard
	err := s.db.WithContext(ctx).
		Where("call_review_id = ? AND scorer_type = ?", callReviewID, scorerType).
		First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScorecardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s scorecard for review %s: %w", scorerType, callReviewID, err)
	}
	return &card, nil
}

// Submit writes the full submission payload as one atomic update. The
// submitted_at IS NULL guard rejects a second submission of the same card at
// the database rather than relying on a prior read.
func (s *scorecardStore) Submit(ctx context.Context, callReviewID, scorerType string, scores models.SectionScores, comments, quotes models.SectionText, totalScore int, submittedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Scorecard{}).
		Where("call_review_id = ? AND scorer_type = ? AND submitted_at IS NULL", callReviewID, scorerType).
		Updates(map[string]interface{}{
			"scores":       scores,
			"comments":     comments,
			"quotes":       quotes,
			"total_score":  totalScore,
			"submitted_at": submittedAt,
			"update_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to submit %s scorecard for review %s: %w", scorerType, callReviewID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the card does not exist or it was already submitted.
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.Scorecard{}).
			Where("call_review_id = ? AND scorer_type = ?", callReviewID, scorerType).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check %s scorecard for review %s: %w", scorerType, callReviewID, err)
		}
		if count == 0 {
			return ErrScorecardNotFound
		}
		return ErrScorecardAlreadySubmitted
	}
	return nil
}

type callReviewStore struct {
	db *gorm.DB
}

// NewCallReviewRepository returns a gorm-backed call review repository.
func NewCallReviewRepository(db *gorm.DB) CallReviewRepository {
	if db == nil {
		db = config.DB
	}
	return &callReviewStore{db: db}
}

func (s *callReviewStore) Get(ctx context.Context, id string) (*models.CallReview, error) {
	var review models.CallReview
	err := s.db.WithContext(ctx).
		Where("call_review_id = ? AND delete_at IS NULL", id).
		First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCallReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call review %s: %w", id, err)
	}
	return &review, nil
}

// Create persists the review and provisions its three blank scorecards in a
// single transaction, so a review can never exist without its full card set.
func (s *callReviewStore) Create(ctx context.Context, review *models.CallReview) error {
	now := time.Now()
	if review.CallReviewID == "" {
		review.CallReviewID = uuid.NewString()
	}
	review.Status = models.StatusPendingSelfScore
	review.CreateAt = now
	review.UpdateAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("failed to create call review: %w", err)
		}
		for _, scorerType := range models.ScorerTypes {
			card := models.Scorecard{
				ScorecardID:  uuid.NewString(),
				CallReviewID: review.CallReviewID,
				SeID:         review.SeID,
				ScorerType:   scorerType,
				Scores:       models.BlankScores(),
				CreateAt:     now,
				UpdateAt:     now,
			}
			if err := tx.Create(&card).Error; err != nil {
				return fmt.Errorf("failed to provision %s scorecard: %w", scorerType, err)
			}
		}
		return nil
	})
}

// UpdateStatus guards the write with the status the caller derived from, so
// a stale derivation can never overwrite a newer one. Zero rows touched means
// either the review is gone or another writer got there first.
func (s *callReviewStore) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	result := s.db.WithContext(ctx).
		Model(&models.CallReview{}).
		Where("call_review_id = ? AND delete_at IS NULL AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":    toStatus,
			"update_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update status for call review %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.CallReview{}).
			Where("call_review_id = ? AND delete_at IS NULL", id).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check call review %s: %w", id, err)
		}
		if count == 0 {
			return ErrCallReviewNotFound
		}
		return ErrStatusConflict
	}
	return nil
}
