package models

import (
	"time"
)

// Call review lifecycle statuses. A review moves forward as scorecards come
// in and never skips PendingManagerReview on the human path.
const (
	StatusPendingSelfScore     = "PendingSelfScore"
	StatusPendingManagerReview = "PendingManagerReview"
	StatusReadyForCoaching     = "ReadyForCoaching"
	StatusCompleted            = "Completed"
)

// Scorer types. Every review carries exactly one scorecard per type.
const (
	ScorerSelf    = "SelfScore"
	ScorerManager = "ManagerScore"
	ScorerAI      = "AIScore"
)

// ScorerTypes lists all scorer types in provisioning order.
var ScorerTypes = []string{ScorerSelf, ScorerManager, ScorerAI}

func IsValidScorerType(scorerType string) bool {
	for _, t := range ScorerTypes {
		if t == scorerType {
			return true
		}
	}
	return false
}

type CallReview struct {
	CallReviewID string     `gorm:"primaryKey;column:call_review_id;type:char(36)" json:"call_review_id"`
	SeID         int        `gorm:"column:se_id;index" json:"se_id"`
	ManagerID    int        `gorm:"column:manager_id;index" json:"manager_id"`
	CustomerName string     `gorm:"column:customer_name" json:"customer_name"`
	CallDate     time.Time  `gorm:"column:call_date" json:"call_date"`
	CallLink     string     `gorm:"column:call_link" json:"call_link"`
	Transcript   string     `gorm:"column:transcript;type:longtext" json:"transcript,omitempty"`
	Status       string     `gorm:"column:status;index" json:"status"`
	CreateAt     time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt     time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt     *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Se      *User `gorm:"foreignKey:SeID" json:"se,omitempty"`
	Manager *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
}

func (CallReview) TableName() string {
	return "call_reviews"
}
