package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fatoldnerd/sedemoscoring/models"
)

var (
	ErrUnknownScorerType   = errors.New("unknown scorer type")
	ErrReviewNotCoachReady = errors.New("call review is not ready for coaching")
)

// ScorecardSubmission is the payload of one scorer's submission. Quotes are
// only populated by the AI scorer; human scorers may leave them empty.
type ScorecardSubmission struct {
	Scores   models.SectionScores
	Comments models.SectionText
	Quotes   models.SectionText
}

// Notifier is told about reviews that become ready for coaching. Delivery
// failures must not block the workflow; implementations report them on their
// own channel.
type Notifier interface {
	ReviewReadyForCoaching(review *models.CallReview)
}

// WorkflowService coordinates scorecard submissions with the review status.
// Every submission path, human or AI, converges here: persist the card,
// re-read the authoritative card set, derive the status, persist it. The
// service never trusts a caller's view of the other two cards.
type WorkflowService struct {
	scorecards ScorecardRepository
	reviews    CallReviewRepository
	notifier   Notifier
}

func NewWorkflowService(scorecards ScorecardRepository, reviews CallReviewRepository) *WorkflowService {
	return &WorkflowService{scorecards: scorecards, reviews: reviews}
}

// WithNotifier wires an optional coaching-ready notifier.
func (s *WorkflowService) WithNotifier(n Notifier) *WorkflowService {
	s.notifier = n
	return s
}

// SubmitScorecard records a human scorer's submission. The total is always
// recomputed from the item scores; a client-supplied total is ignored.
// Submitting an already-submitted card fails with
// ErrScorecardAlreadySubmitted.
func (s *WorkflowService) SubmitScorecard(ctx context.Context, callReviewID, scorerType string, submission ScorecardSubmission) (*models.Scorecard, error) {
	if !models.IsValidScorerType(scorerType) {
		return nil, ErrUnknownScorerType
	}

	total := ComputeTotal(submission.Scores)
	submittedAt := time.Now()

	if err := s.scorecards.Submit(ctx, callReviewID, scorerType,
		submission.Scores, submission.Comments, submission.Quotes,
		total, submittedAt); err != nil {
		if errors.Is(err, ErrScorecardAlreadySubmitted) {
			// The card landed on an earlier attempt whose status write may
			// have been lost; a retry still converges the review.
			if _, rerr := s.RecomputeStatus(ctx, callReviewID); rerr != nil {
				log.Printf("status recompute on resubmit of %s failed: %v", callReviewID, rerr)
			}
		}
		return nil, err
	}

	if _, err := s.RecomputeStatus(ctx, callReviewID); err != nil {
		return nil, err
	}

	card, err := s.scorecards.GetByType(ctx, callReviewID, scorerType)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// statusRecomputeAttempts bounds the compare-and-set loop; two concurrent
// submitters resolve on the second pass, three on the third.
const statusRecomputeAttempts = 3

// RecomputeStatus re-reads the review's scorecards, derives the lifecycle
// status from their submission state and persists it with a compare-and-set
// on the status it derived from. A concurrent writer fails the set, and the
// loop re-reads and re-derives, so the last persisted status always reflects
// the full card state no matter how submissions interleave.
func (s *WorkflowService) RecomputeStatus(ctx context.Context, callReviewID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < statusRecomputeAttempts; attempt++ {
		cards, err := s.scorecards.GetForReview(ctx, callReviewID)
		if err != nil {
			return "", err
		}

		review, err := s.reviews.Get(ctx, callReviewID)
		if err != nil {
			return "", err
		}

		// A completed review stays completed; archival is manual and final.
		if review.Status == models.StatusCompleted {
			return review.Status, nil
		}

		status := DeriveStatus(SnapshotFromScorecards(cards))
		if status == review.Status {
			return status, nil
		}

		if err := s.reviews.UpdateStatus(ctx, callReviewID, review.Status, status); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				lastErr = err
				continue
			}
			return "", err
		}
		log.Printf("call review %s status: %s -> %s", callReviewID, review.Status, status)

		if status == models.StatusReadyForCoaching && s.notifier != nil {
			review.Status = status
			s.notifier.ReviewReadyForCoaching(review)
		}
		return status, nil
	}
	return "", fmt.Errorf("status recompute for call review %s: %w", callReviewID, lastErr)
}

// MarkCompleted archives a coached review. Only valid from ReadyForCoaching;
// the status engine itself never produces Completed.
func (s *WorkflowService) MarkCompleted(ctx context.Context, callReviewID string) error {
	review, err := s.reviews.Get(ctx, callReviewID)
	if err != nil {
		return err
	}
	if review.Status != models.StatusReadyForCoaching {
		return fmt.Errorf("%w: status is %s", ErrReviewNotCoachReady, review.Status)
	}
	err = s.reviews.UpdateStatus(ctx, callReviewID, models.StatusReadyForCoaching, models.StatusCompleted)
	if errors.Is(err, ErrStatusConflict) {
		return fmt.Errorf("%w: status changed concurrently", ErrReviewNotCoachReady)
	}
	return err
}
