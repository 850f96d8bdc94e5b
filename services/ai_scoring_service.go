package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fatoldnerd/sedemoscoring/models"
)

const (
	// Up to 3 additional attempts after the first (4 total), with a fixed
	// wait between them, when the model reports transient overload.
	maxScoringRetries = 3
	scoringRetryDelay = 60 * time.Second
)

var (
	ErrMissingTranscript = errors.New("call review has no transcript")
	ErrInvalidAIResponse = errors.New("invalid AI response")
)

// AIScoringService produces the AI scorecard for a call review: it prompts
// the scoring model with the transcript, validates the structured response
// and writes it through the scorecard repository as a single submission, then
// hands off to the workflow service for the status recomputation.
type AIScoringService struct {
	llm        LLMClient
	scorecards ScorecardRepository
	workflow   *WorkflowService
	retryDelay time.Duration
	now        func() time.Time
}

func NewAIScoringService(llm LLMClient, scorecards ScorecardRepository, workflow *WorkflowService) *AIScoringService {
	return &AIScoringService{
		llm:        llm,
		scorecards: scorecards,
		workflow:   workflow,
		retryDelay: scoringRetryDelay,
		now:        time.Now,
	}
}

// ScoreCallReview runs the full pipeline for one review. Terminal failures
// (missing transcript, malformed or schema-invalid response, exhausted
// retries) leave the AI scorecard untouched: the write is all-or-nothing and
// a failed attempt never advances the review status.
func (s *AIScoringService) ScoreCallReview(ctx context.Context, review *models.CallReview) error {
	if strings.TrimSpace(review.Transcript) == "" {
		return ErrMissingTranscript
	}

	// Bound the whole attempt sequence so an overloaded model cannot hold
	// the worker past the retry budget.
	deadline := time.Duration(maxScoringRetries)*s.retryDelay + 2*time.Minute
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	raw, err := s.generateWithRetry(ctx, review.Transcript)
	if err != nil {
		return err
	}

	result, err := parseAIResponse(raw)
	if err != nil {
		return err
	}

	submittedAt := s.now()
	if err := s.scorecards.Submit(ctx, review.CallReviewID, models.ScorerAI,
		result.Scores, result.Comments, result.Quotes,
		result.TotalScore, submittedAt); err != nil {
		return err
	}

	if _, err := s.workflow.RecomputeStatus(ctx, review.CallReviewID); err != nil {
		return err
	}
	return nil
}

// generateWithRetry calls the model, waiting out transient overloads up to
// the retry budget. Any other failure propagates immediately.
func (s *AIScoringService) generateWithRetry(ctx context.Context, transcript string) (string, error) {
	instruction := scoringInstruction()

	var lastErr error
	for attempt := 0; attempt <= maxScoringRetries; attempt++ {
		raw, err := s.llm.Generate(ctx, instruction, transcript)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !errors.Is(err, ErrModelOverloaded) {
			return "", err
		}
		if attempt == maxScoringRetries {
			break
		}

		log.Printf("scoring model overloaded, retrying in %s (attempt %d/%d)",
			s.retryDelay, attempt+2, maxScoringRetries+1)
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// aiScorePayload mirrors the wire schema the model is instructed to return.
// Pointer and map fields make a missing top-level key detectable after
// decoding.
type aiScorePayload struct {
	Scores     map[string]models.ItemScores `json:"scores"`
	Comments   map[string]string            `json:"comments"`
	Quotes     map[string]string            `json:"quotes"`
	TotalScore *int                         `json:"totalScore"`
}

// AIScoreResult is a validated, typed scoring response.
type AIScoreResult struct {
	Scores     models.SectionScores
	Comments   models.SectionText
	Quotes     models.SectionText
	TotalScore int
}

// parseAIResponse strips an optional markdown fence, parses the JSON and
// checks it exhaustively against the rubric schema. Anything that does not
// match exactly is rejected; nothing is written on rejection.
func parseAIResponse(raw string) (*AIScoreResult, error) {
	cleaned := stripCodeFence(raw)

	var payload aiScorePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIResponse, err)
	}

	if payload.Scores == nil {
		return nil, fmt.Errorf("%w: missing scores", ErrInvalidAIResponse)
	}
	if payload.Comments == nil {
		return nil, fmt.Errorf("%w: missing comments", ErrInvalidAIResponse)
	}
	if payload.Quotes == nil {
		return nil, fmt.Errorf("%w: missing quotes", ErrInvalidAIResponse)
	}
	if payload.TotalScore == nil {
		return nil, fmt.Errorf("%w: missing totalScore", ErrInvalidAIResponse)
	}

	if len(payload.Scores) != len(models.Rubric) {
		return nil, fmt.Errorf("%w: expected %d score sections, got %d",
			ErrInvalidAIResponse, len(models.Rubric), len(payload.Scores))
	}
	for _, section := range models.Rubric {
		items, ok := payload.Scores[section.Key]
		if !ok {
			return nil, fmt.Errorf("%w: missing scores section %q", ErrInvalidAIResponse, section.Key)
		}
		if len(items) != len(section.Items) {
			return nil, fmt.Errorf("%w: section %q has %d items, expected %d",
				ErrInvalidAIResponse, section.Key, len(items), len(section.Items))
		}
		for _, item := range section.Items {
			if _, ok := items[item.Key]; !ok {
				return nil, fmt.Errorf("%w: section %q missing item %q",
					ErrInvalidAIResponse, section.Key, item.Key)
			}
		}
		if _, ok := payload.Comments[section.Key]; !ok {
			return nil, fmt.Errorf("%w: missing comment for section %q", ErrInvalidAIResponse, section.Key)
		}
		if _, ok := payload.Quotes[section.Key]; !ok {
			return nil, fmt.Errorf("%w: missing quote for section %q", ErrInvalidAIResponse, section.Key)
		}
	}

	result := &AIScoreResult{
		Scores: models.SectionScores{
			Introduction: payload.Scores[models.SectionIntroduction],
			Consultative: payload.Scores[models.SectionConsultative],
			Workflows:    payload.Scores[models.SectionWorkflows],
			Close:        payload.Scores[models.SectionClose],
		},
		Comments: models.SectionText{
			Introduction: payload.Comments[models.SectionIntroduction],
			Consultative: payload.Comments[models.SectionConsultative],
			Workflows:    payload.Comments[models.SectionWorkflows],
			Close:        payload.Comments[models.SectionClose],
		},
		Quotes: models.SectionText{
			Introduction: payload.Quotes[models.SectionIntroduction],
			Consultative: payload.Quotes[models.SectionConsultative],
			Workflows:    payload.Quotes[models.SectionWorkflows],
			Close:        payload.Quotes[models.SectionClose],
		},
		TotalScore: *payload.TotalScore,
	}

	// The model must do its own arithmetic correctly; a reported total that
	// disagrees with the item scores is as invalid as a missing key.
	if computed := ComputeTotal(result.Scores); computed != result.TotalScore {
		return nil, fmt.Errorf("%w: totalScore %d does not match item sum %d",
			ErrInvalidAIResponse, result.TotalScore, computed)
	}
	return result, nil
}

// stripCodeFence removes an optional surrounding ```/```json markdown fence.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// scoringInstruction builds the fixed system instruction: the rubric as
// scoring rules plus the exact output schema the validator enforces.
func scoringInstruction() string {
	var b strings.Builder
	b.WriteString("You are an expert Sales Engineer Manager. Your task is to score a call transcript based on a rigid scoring system. The user will provide a transcript.\n")
	b.WriteString("Analyze the transcript and provide a score for each item. You must only respond with a single, valid JSON object. Do not include markdown or any other text.\n")
	b.WriteString("The scoring criteria are:\n")
	for i, section := range models.Rubric {
		fmt.Fprintf(&b, "%d. **%s (%d pts total)**:\n", i+1, section.Label, section.MaxPoints())
		for _, item := range section.Items {
			fmt.Fprintf(&b, "   * %s: 0 or %d pts (%s)\n", item.Key, item.MaxPoints, item.Label)
		}
	}
	b.WriteString("\nFor each section, you must also provide a brief comment and a supporting quote from the transcript that best illustrates your assessment. The quote should be the exact text from the transcript.\n")
	b.WriteString("\nYour JSON response **must** follow this exact schema:\n")
	b.WriteString(scoringSchemaExample())
	return b.String()
}

// scoringSchemaExample renders a full-marks example payload, which doubles as
// the schema the model must follow.
func scoringSchemaExample() string {
	scores := make(map[string]map[string]int, len(models.Rubric))
	comments := make(map[string]string, len(models.Rubric))
	quotes := make(map[string]string, len(models.Rubric))
	for _, section := range models.Rubric {
		items := make(map[string]int, len(section.Items))
		for _, item := range section.Items {
			items[item.Key] = item.MaxPoints
		}
		scores[section.Key] = items
		comments[section.Key] = fmt.Sprintf("Brief comment on the %s.", strings.ToLower(section.Label))
		quotes[section.Key] = fmt.Sprintf("Exact quote from the transcript that supports your %s assessment.", strings.ToLower(section.Label))
	}
	example := map[string]interface{}{
		"scores":     scores,
		"comments":   comments,
		"quotes":     quotes,
		"totalScore": models.RubricTotal(),
	}
	rendered, _ := json.MarshalIndent(example, "", "  ")
	return string(rendered)
}
