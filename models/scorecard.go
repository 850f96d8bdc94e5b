package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ItemScores maps rubric item keys to awarded points within one section.
type ItemScores map[string]int

// SectionScores holds the per-item scores of a scorecard, one map per rubric
// section. It is persisted as a single JSON column.
type SectionScores struct {
	Introduction ItemScores `json:"introduction"`
	Consultative ItemScores `json:"consultative"`
	Workflows    ItemScores `json:"workflows"`
	Close        ItemScores `json:"close"`
}

// Section returns the item scores for a rubric section key, or nil for an
// unknown key.
func (s SectionScores) Section(key string) ItemScores {
	switch key {
	case SectionIntroduction:
		return s.Introduction
	case SectionConsultative:
		return s.Consultative
	case SectionWorkflows:
		return s.Workflows
	case SectionClose:
		return s.Close
	}
	return nil
}

func (s SectionScores) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SectionScores) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// SectionText holds one free-text entry per rubric section, used for both
// comments and supporting quotes. Persisted as a JSON column.
type SectionText struct {
	Introduction string `json:"introduction"`
	Consultative string `json:"consultative"`
	Workflows    string `json:"workflows"`
	Close        string `json:"close"`
}

func (s SectionText) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SectionText) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSON column", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

type Scorecard struct {
	ScorecardID  string        `gorm:"primaryKey;column:scorecard_id;type:char(36)" json:"scorecard_id"`
	CallReviewID string        `gorm:"column:call_review_id;type:char(36);uniqueIndex:idx_review_scorer" json:"call_review_id"`
	SeID         int           `gorm:"column:se_id;index" json:"se_id"`
	ScorerType   string        `gorm:"column:scorer_type;uniqueIndex:idx_review_scorer" json:"scorer_type"`
	Scores       SectionScores `gorm:"column:scores;type:json" json:"scores"`
	Comments     SectionText   `gorm:"column:comments;type:json" json:"comments"`
	Quotes       SectionText   `gorm:"column:quotes;type:json" json:"quotes"`
	TotalScore   int           `gorm:"column:total_score" json:"total_score"`
	SubmittedAt  *time.Time    `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt     time.Time     `gorm:"column:create_at" json:"create_at"`
	UpdateAt     time.Time     `gorm:"column:update_at" json:"update_at"`
}

func (Scorecard) TableName() string {
	return "scorecards"
}

// IsSubmitted reports whether this scorecard has been submitted. Populated
// scores without a submission timestamp do not count.
func (s *Scorecard) IsSubmitted() bool {
	return s.SubmittedAt != nil
}
