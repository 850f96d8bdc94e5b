package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatoldnerd/sedemoscoring/models"
)

// fakeLLM replays a scripted sequence of responses.
type fakeLLM struct {
	script []fakeLLMResult
	calls  int
}

type fakeLLMResult struct {
	text string
	err  error
}

func (f *fakeLLM) Generate(_ context.Context, _, _ string) (string, error) {
	if f.calls >= len(f.script) {
		return "", fmt.Errorf("unexpected Generate call %d", f.calls+1)
	}
	result := f.script[f.calls]
	f.calls++
	return result.text, result.err
}

func validAIResponse(t *testing.T) string {
	t.Helper()
	scores := make(map[string]map[string]int)
	comments := make(map[string]string)
	quotes := make(map[string]string)
	for _, section := range models.Rubric {
		items := make(map[string]int, len(section.Items))
		for _, item := range section.Items {
			items[item.Key] = item.MaxPoints
		}
		scores[section.Key] = items
		comments[section.Key] = "Solid " + section.Label
		quotes[section.Key] = "We saw that in the transcript."
	}
	payload := map[string]interface{}{
		"scores":     scores,
		"comments":   comments,
		"quotes":     quotes,
		"totalScore": 100,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to build test payload: %v", err)
	}
	return string(raw)
}

func newTestScorer(reviewID string, llm LLMClient) (*AIScoringService, *fakeScorecardRepo, *fakeReviewRepo) {
	cards := newFakeScorecardRepo(reviewID)
	reviews := newFakeReviewRepo(&models.CallReview{
		CallReviewID: reviewID,
		Status:       models.StatusPendingSelfScore,
		Transcript:   "Prospect: we keep losing track of renewals...",
	})
	workflow := NewWorkflowService(cards, reviews)
	scorer := NewAIScoringService(llm, cards, workflow)
	scorer.retryDelay = time.Millisecond
	return scorer, cards, reviews
}

func TestScoreCallReviewMissingTranscript(t *testing.T) {
	llm := &fakeLLM{}
	scorer, cards, reviews := newTestScorer("cr-ai", llm)
	reviews.review.Transcript = "   "

	err := scorer.ScoreCallReview(context.Background(), reviews.review)
	if !errors.Is(err, ErrMissingTranscript) {
		t.Fatalf("ScoreCallReview() error = %v, want ErrMissingTranscript", err)
	}
	if llm.calls != 0 {
		t.Errorf("Generate called %d times, want 0", llm.calls)
	}
	if cards.submitCount != 0 {
		t.Errorf("submits = %d, want 0", cards.submitCount)
	}
}

func TestScoreCallReviewRetriesOverloadThenSucceeds(t *testing.T) {
	llm := &fakeLLM{script: []fakeLLMResult{
		{err: fmt.Errorf("generate: %w", ErrModelOverloaded)},
		{text: validAIResponse(t)},
	}}
	scorer, cards, reviews := newTestScorer("cr-ai", llm)

	if err := scorer.ScoreCallReview(context.Background(), reviews.review); err != nil {
		t.Fatalf("ScoreCallReview() error = %v", err)
	}
	if llm.calls != 2 {
		t.Errorf("Generate called %d times, want 2", llm.calls)
	}
	if cards.submitCount != 1 {
		t.Errorf("submits = %d, want 1", cards.submitCount)
	}

	card, err := cards.GetByType(context.Background(), "cr-ai", models.ScorerAI)
	if err != nil {
		t.Fatalf("GetByType() error = %v", err)
	}
	if card.SubmittedAt == nil {
		t.Error("AI scorecard SubmittedAt not set")
	}
	if card.TotalScore != 100 {
		t.Errorf("AI scorecard TotalScore = %d, want 100", card.TotalScore)
	}

	// Only the AI portion is in: the review must still wait on the self-score.
	if reviews.review.Status != models.StatusPendingSelfScore {
		t.Errorf("review status = %q, want %q", reviews.review.Status, models.StatusPendingSelfScore)
	}
}

func TestScoreCallReviewExhaustsRetries(t *testing.T) {
	overloaded := fakeLLMResult{err: fmt.Errorf("generate: %w", ErrModelOverloaded)}
	llm := &fakeLLM{script: []fakeLLMResult{overloaded, overloaded, overloaded, overloaded}}
	scorer, cards, reviews := newTestScorer("cr-ai", llm)

	err := scorer.ScoreCallReview(context.Background(), reviews.review)
	if !errors.Is(err, ErrModelOverloaded) {
		t.Fatalf("ScoreCallReview() error = %v, want ErrModelOverloaded", err)
	}
	if llm.calls != maxScoringRetries+1 {
		t.Errorf("Generate called %d times, want %d", llm.calls, maxScoringRetries+1)
	}
	if cards.submitCount != 0 {
		t.Errorf("submits = %d, want 0", cards.submitCount)
	}
}

func TestScoreCallReviewDoesNotRetryTerminalErrors(t *testing.T) {
	llm := &fakeLLM{script: []fakeLLMResult{
		{err: errors.New("API request failed with status 400")},
	}}
	scorer, cards, reviews := newTestScorer("cr-ai", llm)

	err := scorer.ScoreCallReview(context.Background(), reviews.review)
	if err == nil || errors.Is(err, ErrModelOverloaded) {
		t.Fatalf("ScoreCallReview() error = %v, want terminal error", err)
	}
	if llm.calls != 1 {
		t.Errorf("Generate called %d times, want 1", llm.calls)
	}
	if cards.submitCount != 0 {
		t.Errorf("submits = %d, want 0", cards.submitCount)
	}
}

func TestScoreCallReviewAcceptsFencedResponse(t *testing.T) {
	llm := &fakeLLM{script: []fakeLLMResult{
		{text: "```json\n" + validAIResponse(t) + "\n```"},
	}}
	scorer, cards, reviews := newTestScorer("cr-ai", llm)

	if err := scorer.ScoreCallReview(context.Background(), reviews.review); err != nil {
		t.Fatalf("ScoreCallReview() error = %v", err)
	}
	if cards.submitCount != 1 {
		t.Errorf("submits = %d, want 1", cards.submitCount)
	}
}

func TestScoreCallReviewRejectsInvalidResponses(t *testing.T) {
	dropKey := func(key string) string {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal([]byte(validAIResponse(t)), &payload); err != nil {
			t.Fatalf("failed to parse test payload: %v", err)
		}
		delete(payload, key)
		raw, _ := json.Marshal(payload)
		return string(raw)
	}

	cases := []struct {
		name string
		text string
	}{
		{"not json", "The call went quite well overall!"},
		{"missing scores", dropKey("scores")},
		{"missing comments", dropKey("comments")},
		{"missing quotes", dropKey("quotes")},
		{"missing totalScore", dropKey("totalScore")},
		{"totalScore as string", func() string {
			var payload map[string]json.RawMessage
			json.Unmarshal([]byte(validAIResponse(t)), &payload)
			payload["totalScore"] = json.RawMessage(`"95"`)
			raw, _ := json.Marshal(payload)
			return string(raw)
		}()},
		{"totalScore disagrees with item sum", func() string {
			var payload map[string]json.RawMessage
			json.Unmarshal([]byte(validAIResponse(t)), &payload)
			payload["totalScore"] = json.RawMessage(`90`)
			raw, _ := json.Marshal(payload)
			return string(raw)
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fakeLLM{script: []fakeLLMResult{{text: tc.text}}}
			scorer, cards, reviews := newTestScorer("cr-ai", llm)

			err := scorer.ScoreCallReview(context.Background(), reviews.review)
			if !errors.Is(err, ErrInvalidAIResponse) {
				t.Fatalf("ScoreCallReview() error = %v, want ErrInvalidAIResponse", err)
			}
			if cards.submitCount != 0 {
				t.Errorf("submits = %d, want 0", cards.submitCount)
			}
			if len(reviews.statusWrites) != 0 {
				t.Errorf("status writes = %v, want none", reviews.statusWrites)
			}
		})
	}
}

func TestParseAIResponseEnforcesExactItemKeys(t *testing.T) {
	mutate := func(fn func(scores map[string]map[string]int)) string {
		var payload struct {
			Scores     map[string]map[string]int `json:"scores"`
			Comments   map[string]string         `json:"comments"`
			Quotes     map[string]string         `json:"quotes"`
			TotalScore int                       `json:"totalScore"`
		}
		if err := json.Unmarshal([]byte(validAIResponse(t)), &payload); err != nil {
			t.Fatalf("failed to parse test payload: %v", err)
		}
		fn(payload.Scores)
		raw, _ := json.Marshal(payload)
		return string(raw)
	}

	missingItem := mutate(func(scores map[string]map[string]int) {
		delete(scores[models.SectionIntroduction], "credibility")
	})
	extraItem := mutate(func(scores map[string]map[string]int) {
		scores[models.SectionClose]["encore"] = 5
	})
	missingSection := mutate(func(scores map[string]map[string]int) {
		delete(scores, models.SectionWorkflows)
	})

	for name, text := range map[string]string{
		"missing item":    missingItem,
		"extra item":      extraItem,
		"missing section": missingSection,
	} {
		if _, err := parseAIResponse(text); !errors.Is(err, ErrInvalidAIResponse) {
			t.Errorf("%s: parseAIResponse() error = %v, want ErrInvalidAIResponse", name, err)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
