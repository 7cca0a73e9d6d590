package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/applicant-pipeline/internal/ai"
	"github.com/spigell/applicant-pipeline/internal/logger"
	"github.com/spigell/applicant-pipeline/internal/utils"
)

const (
	systemInstruction   = "You are a helpful evaluator that outputs only JSON."
	defaultMaxLogLength = 200

	keySummary   = "LLM Summary"
	keyScore     = "LLM Score"
	keyFollowUps = "LLM Follow-Ups"

	// The prompt asks for 2-3 follow-up questions.
	maxFollowUps = 3
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Scorer asks Gemini for a summary, a score and follow-up questions.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger.WithCommonFields(log, "gemini", generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (s *Scorer) Model() string {
	return s.generator.Model()
}

// Score returns an error only when the model could not be reached. An
// unparsable answer is reported through Evaluation.Error.
func (s *Scorer) Score(ctx context.Context, snapshot string) (*ai.Evaluation, error) {
	if strings.TrimSpace(snapshot) == "" {
		return nil, errors.New("snapshot must not be empty")
	}

	prompt := buildPrompt(snapshot)

	s.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return parseResponse(raw), nil
}

func buildPrompt(snapshot string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Candidate:\n{{SNAPSHOT_JSON}}\n\nJSON Response:"
	}
	return strings.ReplaceAll(template, "{{SNAPSHOT_JSON}}", snapshot)
}

func parseResponse(raw string) *ai.Evaluation {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil || data == nil {
		return &ai.Evaluation{Error: ai.InvalidJSON, Raw: raw}
	}

	evaluation := &ai.Evaluation{Raw: raw}

	if summary := coerceString(data[keySummary]); summary != "" {
		evaluation.Summary = &summary
	}

	if score, ok := coerceScore(data[keyScore]); ok {
		evaluation.Score = &score
	}

	evaluation.FollowUps = coerceStrings(data[keyFollowUps])
	if len(evaluation.FollowUps) > maxFollowUps {
		evaluation.FollowUps = evaluation.FollowUps[:maxFollowUps]
	}

	return evaluation
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// coerceScore accepts whole numbers from 1 to 10, also when sent as text.
func coerceScore(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if f != math.Trunc(f) || f < 1 || f > 10 {
		return 0, false
	}
	return int(f), true
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
