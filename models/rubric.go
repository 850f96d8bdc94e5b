package models

// Rubric section keys. These are the JSON keys of the scores, comments and
// quotes columns as well as the section names shown to the scoring model.
const (
	SectionIntroduction = "introduction"
	SectionConsultative = "consultative"
	SectionWorkflows    = "workflows"
	SectionClose        = "close"
)

type RubricItem struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	MaxPoints int    `json:"max_points"`
}

type RubricSection struct {
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Items []RubricItem `json:"items"`
}

// Rubric is the fixed demo-call scoring rubric. All three scorer types score
// against the same sections and items; section weights sum to 100.
var Rubric = []RubricSection{
	{
		Key:   SectionIntroduction,
		Label: "Introduction",
		Items: []RubricItem{
			{Key: "credibility", Label: "Established credibility", MaxPoints: 2},
			{Key: "priorities", Label: "Confirmed customer priorities", MaxPoints: 5},
			{Key: "roadmap", Label: "Set a roadmap for the call", MaxPoints: 3},
		},
	},
	{
		Key:   SectionConsultative,
		Label: "Consultative Demo",
		Items: []RubricItem{
			{Key: "story", Label: "Told a coherent story", MaxPoints: 10},
			{Key: "featureTour", Label: "Avoided a feature tour", MaxPoints: 10},
			{Key: "terminology", Label: "Used the customer's terminology", MaxPoints: 5},
			{Key: "functionality", Label: "Showed relevant functionality", MaxPoints: 10},
			{Key: "tailoring", Label: "Tailored the demo environment", MaxPoints: 5},
		},
	},
	{
		Key:   SectionWorkflows,
		Label: "Customer Workflows",
		Items: []RubricItem{
			{Key: "confirmValue", Label: "Confirmed value after each workflow", MaxPoints: 15},
			{Key: "connectDots", Label: "Connected features to stated priorities", MaxPoints: 15},
			{Key: "painResolved", Label: "Demonstrated pain being resolved", MaxPoints: 10},
		},
	},
	{
		Key:   SectionClose,
		Label: "Close",
		Items: []RubricItem{
			{Key: "priorityTopics", Label: "Revisited priority topics", MaxPoints: 2},
			{Key: "valuePillar", Label: "Recapped the value pillars", MaxPoints: 5},
			{Key: "deliverables", Label: "Agreed on deliverables and next steps", MaxPoints: 3},
		},
	},
}

// MaxPoints returns the section's weight, the sum of its item maximums.
func (s RubricSection) MaxPoints() int {
	total := 0
	for _, item := range s.Items {
		total += item.MaxPoints
	}
	return total
}

// RubricTotal returns the maximum achievable total score.
func RubricTotal() int {
	total := 0
	for _, section := range Rubric {
		for _, item := range section.Items {
			total += item.MaxPoints
		}
	}
	return total
}

// BlankScores returns a score sheet with every rubric item present at zero.
func BlankScores() SectionScores {
	blank := func(items []RubricItem) ItemScores {
		scores := make(ItemScores, len(items))
		for _, item := range items {
			scores[item.Key] = 0
		}
		return scores
	}
	var s SectionScores
	for _, section := range Rubric {
		switch section.Key {
		case SectionIntroduction:
			s.Introduction = blank(section.Items)
		case SectionConsultative:
			s.Consultative = blank(section.Items)
		case SectionWorkflows:
			s.Workflows = blank(section.Items)
		case SectionClose:
			s.Close = blank(section.Items)
		}
	}
	return s
}
