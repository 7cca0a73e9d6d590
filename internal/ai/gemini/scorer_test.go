package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, prompt string) (string, error) {
	s.lastSystem = system
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestScorerParsesEvaluation(t *testing.T) {
	stub := &stubGenerator{response: `{"LLM Summary": " Go engineer ", "LLM Score": 8, "LLM Follow-Ups": ["Start date?", "", "Visa?"]}`}
	scorer := NewScorer(stub, zap.NewNop(), 0)

	evaluation, err := scorer.Score(context.Background(), `{"Applicant ID":"a@example.com"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if evaluation.Failed() {
		t.Fatalf("unexpected failure: %s", evaluation.Error)
	}
	if evaluation.Summary == nil || *evaluation.Summary != "Go engineer" {
		t.Fatalf("unexpected summary: %v", evaluation.Summary)
	}
	if evaluation.Score == nil || *evaluation.Score != 8 {
		t.Fatalf("unexpected score: %v", evaluation.Score)
	}
	if len(evaluation.FollowUps) != 2 || evaluation.FollowUps[1] != "Visa?" {
		t.Fatalf("unexpected follow-ups: %v", evaluation.FollowUps)
	}

	if stub.lastSystem != systemInstruction {
		t.Fatalf("unexpected system instruction: %q", stub.lastSystem)
	}
	if !strings.Contains(stub.lastPrompt, `{"Applicant ID":"a@example.com"}`) {
		t.Fatalf("snapshot missing from prompt: %s", stub.lastPrompt)
	}
	if strings.Contains(stub.lastPrompt, "{{SNAPSHOT_JSON}}") {
		t.Fatal("placeholder left in prompt")
	}
}

func TestParseResponseLimitsFollowUps(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "extra questions are cut",
			response: `{"LLM Follow-Ups": ["One?", "Two?", "", "Three?", "Four?", "Five?"]}`,
			want:     []string{"One?", "Two?", "Three?"},
		},
		{
			name:     "a single question is kept",
			response: `{"LLM Follow-Ups": ["Only one?"]}`,
			want:     []string{"Only one?"},
		},
		{
			name:     "no usable question",
			response: `{"LLM Follow-Ups": ["", "  "]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseResponse(tc.response).FollowUps
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestScorerReportsMalformedResponse(t *testing.T) {
	for name, response := range map[string]string{
		"prose": "Sure! The candidate looks great.",
		"array": `["LLM Summary"]`,
		"null":  "null",
	} {
		t.Run(name, func(t *testing.T) {
			scorer := NewScorer(&stubGenerator{response: response}, zap.NewNop(), 0)

			evaluation, err := scorer.Score(context.Background(), "{}")
			if err != nil {
				t.Fatalf("malformed response must not be an error, got %v", err)
			}
			if evaluation.Error != ai.InvalidJSON || evaluation.Raw != response {
				t.Fatalf("unexpected evaluation: %+v", evaluation)
			}
			if evaluation.Summary != nil || evaluation.Score != nil || evaluation.FollowUps != nil {
				t.Fatalf("no field may be set on failure: %+v", evaluation)
			}
		})
	}
}

func TestScorerPropagatesGeneratorError(t *testing.T) {
	scorer := NewScorer(&stubGenerator{err: errors.New("quota")}, zap.NewNop(), 0)

	if _, err := scorer.Score(context.Background(), "{}"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseResponseHandlesCodeBlock(t *testing.T) {
	evaluation := parseResponse("```json\n{\"LLM Score\": \"9\"}\n```")
	if evaluation.Failed() {
		t.Fatalf("unexpected failure: %+v", evaluation)
	}
	if evaluation.Score == nil || *evaluation.Score != 9 {
		t.Fatalf("unexpected score: %v", evaluation.Score)
	}
	if evaluation.Summary != nil || evaluation.FollowUps != nil {
		t.Fatalf("missing fields must stay unset: %+v", evaluation)
	}
}

func TestCoerceScore(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{float64(1), 1, true},
		{float64(10), 10, true},
		{"7", 7, true},
		{float64(0), 0, false},
		{float64(11), 0, false},
		{7.5, 0, false},
		{"high", 0, false},
		{nil, 0, false},
	}

	for _, tc := range cases {
		got, ok := coerceScore(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("coerceScore(%v) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
