package services

import (
	"testing"

	"github.com/fatoldnerd/sedemoscoring/models"
)

func maxScores() models.SectionScores {
	scores := models.SectionScores{}
	fill := func(sectionKey string) models.ItemScores {
		for _, section := range models.Rubric {
			if section.Key != sectionKey {
				continue
			}
			items := make(models.ItemScores, len(section.Items))
			for _, item := range section.Items {
				items[item.Key] = item.MaxPoints
			}
			return items
		}
		return nil
	}
	scores.Introduction = fill(models.SectionIntroduction)
	scores.Consultative = fill(models.SectionConsultative)
	scores.Workflows = fill(models.SectionWorkflows)
	scores.Close = fill(models.SectionClose)
	return scores
}

func TestComputeTotalAllZero(t *testing.T) {
	if got := ComputeTotal(models.BlankScores()); got != 0 {
		t.Fatalf("ComputeTotal(blank) = %d, want 0", got)
	}
}

func TestComputeTotalAllMaxIs100(t *testing.T) {
	if got := ComputeTotal(maxScores()); got != 100 {
		t.Fatalf("ComputeTotal(max) = %d, want 100", got)
	}
}

func TestComputeTotalIgnoresUnknownAndMissingItems(t *testing.T) {
	scores := models.SectionScores{
		Introduction: models.ItemScores{
			"credibility": 2,
			"mystery":     50, // not a rubric item
		},
		// remaining sections absent entirely
	}
	if got := ComputeTotal(scores); got != 2 {
		t.Fatalf("ComputeTotal = %d, want 2", got)
	}
}

func TestComputeTotalDoesNotClamp(t *testing.T) {
	scores := maxScores()
	scores.Close["deliverables"] = 300

	if got := ComputeTotal(scores); got != 397 {
		t.Fatalf("ComputeTotal = %d, want 397 (no per-item clamping)", got)
	}
}

func TestSectionTotal(t *testing.T) {
	scores := maxScores()
	cases := []struct {
		section string
		want    int
	}{
		{models.SectionIntroduction, 10},
		{models.SectionConsultative, 40},
		{models.SectionWorkflows, 40},
		{models.SectionClose, 10},
		{"unknown", 0},
	}
	for _, tc := range cases {
		if got := SectionTotal(scores, tc.section); got != tc.want {
			t.Errorf("SectionTotal(%q) = %d, want %d", tc.section, got, tc.want)
		}
	}
}

func TestRubricTotalIs100(t *testing.T) {
	if got := models.RubricTotal(); got != 100 {
		t.Fatalf("RubricTotal() = %d, want 100", got)
	}
}
