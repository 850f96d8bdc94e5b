package services

import (
	"context"
	"errors"
	"log"
)

// ScoringWorker binds scoring jobs from the queue to the AI pipeline. The
// trigger is asynchronous with no caller to answer to, so every failure here
// ends up in the log; a failed review stays pending until manually retried.
type ScoringWorker struct {
	reviews CallReviewRepository
	scorer  *AIScoringService
}

func NewScoringWorker(reviews CallReviewRepository, scorer *AIScoringService) *ScoringWorker {
	return &ScoringWorker{reviews: reviews, scorer: scorer}
}

// Handle processes one scoring job.
func (w *ScoringWorker) Handle(job ScoringJob) {
	ctx := context.Background()
	log.Printf("processing AI score for call review %s", job.CallReviewID)

	review, err := w.reviews.Get(ctx, job.CallReviewID)
	if err != nil {
		log.Printf("AI scoring: failed to load call review %s: %v", job.CallReviewID, err)
		return
	}

	if err := w.scorer.ScoreCallReview(ctx, review); err != nil {
		switch {
		case errors.Is(err, ErrMissingTranscript):
			log.Printf("AI scoring: call review %s has no transcript, skipping", job.CallReviewID)
		case errors.Is(err, ErrInvalidAIResponse):
			log.Printf("AI scoring: rejected response for call review %s: %v", job.CallReviewID, err)
		default:
			log.Printf("AI scoring failed for call review %s: %v", job.CallReviewID, err)
		}
		return
	}
	log.Printf("AI scorecard submitted for call review %s", job.CallReviewID)
}
