package services

import (
	"github.com/fatoldnerd/sedemoscoring/models"
)

// ComputeTotal sums every rubric item's value across all four sections.
// Missing items count as 0. Item values are NOT clamped to their rubric
// maximum; the scoring surfaces are trusted to enforce the per-item range.
func ComputeTotal(scores models.SectionScores) int {
	total := 0
	for _, section := range models.Rubric {
		items := scores.Section(section.Key)
		if items == nil {
			continue
		}
		for _, item := range section.Items {
			total += items[item.Key]
		}
	}
	return total
}

// SectionTotal sums the item values of a single rubric section.
func SectionTotal(scores models.SectionScores, sectionKey string) int {
	items := scores.Section(sectionKey)
	if items == nil {
		return 0
	}
	for _, section := range models.Rubric {
		if section.Key != sectionKey {
			continue
		}
		total := 0
		for _, item := range section.Items {
			total += items[item.Key]
		}
		return total
	}
	return 0
}
