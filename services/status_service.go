package services

import (
	"github.com/fatoldnerd/sedemoscoring/models"
)

// SubmissionSnapshot captures which of the three scorecards have been
// submitted at the moment of a status recomputation.
type SubmissionSnapshot struct {
	SelfSubmitted    bool
	ManagerSubmitted bool
	AISubmitted      bool
}

// SnapshotFromScorecards reduces a set of scorecards to the submission flags
// the status derivation needs. Cards of unknown scorer types are ignored.
func SnapshotFromScorecards(cards []models.Scorecard) SubmissionSnapshot {
	var snap SubmissionSnapshot
	for i := range cards {
		if !cards[i].IsSubmitted() {
			continue
		}
		switch cards[i].ScorerType {
		case models.ScorerSelf:
			snap.SelfSubmitted = true
		case models.ScorerManager:
			snap.ManagerSubmitted = true
		case models.ScorerAI:
			snap.AISubmitted = true
		}
	}
	return snap
}

// DeriveStatus maps a submission snapshot to the review lifecycle status.
// The function is pure and recomputes from scratch on every call, which makes
// it safe to invoke from any of the three submission paths in any order: once
// all three cards are in, every caller derives ReadyForCoaching regardless of
// who submitted last. StatusCompleted is never produced here; it is a manual
// archival step.
func DeriveStatus(snap SubmissionSnapshot) string {
	if snap.SelfSubmitted && snap.ManagerSubmitted && snap.AISubmitted {
		return models.StatusReadyForCoaching
	}
	if snap.SelfSubmitted {
		return models.StatusPendingManagerReview
	}
	return models.StatusPendingSelfScore
}
