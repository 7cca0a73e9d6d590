package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/applicant-pipeline/internal/ai"
	"github.com/spigell/applicant-pipeline/internal/airtable/airtabletest"
	"github.com/spigell/applicant-pipeline/internal/applicant"
	"github.com/spigell/applicant-pipeline/internal/batch"
)

type stubScorer struct {
	evaluation *ai.Evaluation
	err        error
	snapshots  []string
}

func (s *stubScorer) Score(_ context.Context, snapshot string) (*ai.Evaluation, error) {
	s.snapshots = append(s.snapshots, snapshot)
	return s.evaluation, s.err
}

func (s *stubScorer) Model() string { return "stub" }

func noWait(t *testing.T) {
	t.Helper()

	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func setup(t *testing.T, scorer ai.Scorer, logger *zap.Logger) (*Enricher, *airtabletest.Base, *applicant.Applicant) {
	t.Helper()
	noWait(t)

	base := airtabletest.New()
	id := base.Add("Applicants", map[string]any{applicant.FieldApplicantID: "ada@example.com"})
	repo := applicant.NewRepository(base, applicant.DefaultTables(), nil)

	a := &applicant.Applicant{RecordID: id, ApplicantID: "ada@example.com", Snapshot: `{"Applicant ID":"ada@example.com"}`}
	return New(repo, scorer, 3, logger), base, a
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestEnricherWritesEveryField(t *testing.T) {
	scorer := &stubScorer{evaluation: &ai.Evaluation{
		Summary:   strPtr("<b>Go</b> engineer & mentor"),
		Score:     intPtr(8),
		FollowUps: []string{"Start date?", "<script>x</script>", "Visa status?"},
	}}
	enricher, base, a := setup(t, scorer, nil)

	result, err := enricher.Process(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != batch.OutcomeDone {
		t.Fatalf("expected done, got %+v", result)
	}

	if len(scorer.snapshots) != 1 || scorer.snapshots[0] != a.Snapshot {
		t.Fatalf("scorer must receive the raw snapshot, got %v", scorer.snapshots)
	}

	fields := base.Record("Applicants", a.RecordID).Fields
	if fields[applicant.FieldSummary] != "Go engineer & mentor" {
		t.Fatalf("unexpected summary: %q", fields[applicant.FieldSummary])
	}
	if fields[applicant.FieldScore] != 8 {
		t.Fatalf("unexpected score: %v", fields[applicant.FieldScore])
	}
	if fields[applicant.FieldFollowUps] != `["Start date?","Visa status?"]` {
		t.Fatalf("unexpected follow-ups: %v", fields[applicant.FieldFollowUps])
	}
}

func TestEnricherSkipsMissingFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	scorer := &stubScorer{evaluation: &ai.Evaluation{Score: intPtr(5)}}
	enricher, base, a := setup(t, scorer, zap.New(core))

	if _, err := enricher.Process(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(base.Patches) != 1 || base.Patches[0].Field != applicant.FieldScore {
		t.Fatalf("expected only the score to be written, got %+v", base.Patches)
	}
	if n := observed.FilterMessage("field not found in response").Len(); n != 2 {
		t.Fatalf("expected 2 missing field logs, got %d", n)
	}
}

func TestEnricherWritesNothingOnMalformedResponse(t *testing.T) {
	scorer := &stubScorer{evaluation: &ai.Evaluation{Error: ai.InvalidJSON, Raw: "not json"}}
	enricher, base, a := setup(t, scorer, nil)

	result, err := enricher.Process(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != batch.OutcomeSkipped || result.Detail != ai.InvalidJSON {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(base.Patches) != 0 {
		t.Fatalf("expected no patches, got %+v", base.Patches)
	}
}

func TestEnricherWritesNothingWhenScoringFails(t *testing.T) {
	scorer := &stubScorer{err: errors.New("retries exhausted")}
	enricher, base, a := setup(t, scorer, nil)

	if _, err := enricher.Process(context.Background(), a); err == nil {
		t.Fatal("expected error")
	}
	if len(base.Patches) != 0 {
		t.Fatalf("expected no patches, got %+v", base.Patches)
	}
}

func TestEnricherRetriesPatchAndIsolatesFields(t *testing.T) {
	scorer := &stubScorer{evaluation: &ai.Evaluation{
		Summary:   strPtr("Go engineer"),
		Score:     intPtr(8),
		FollowUps: []string{"Start date?"},
	}}
	enricher, base, a := setup(t, scorer, nil)

	summaryFailures := 0
	base.FailPatch = func(_, _, field string) error {
		switch field {
		case applicant.FieldSummary:
			if summaryFailures < 2 {
				summaryFailures++
				return errors.New("temporary")
			}
		case applicant.FieldScore:
			return errors.New("invalid value for column")
		}
		return nil
	}

	_, err := enricher.Process(context.Background(), a)
	if err == nil {
		t.Fatal("expected the score failure to be reported")
	}

	fields := base.Record("Applicants", a.RecordID).Fields
	if fields[applicant.FieldSummary] != "Go engineer" {
		t.Fatalf("summary should succeed on the third attempt, got %v", fields[applicant.FieldSummary])
	}
	if _, ok := fields[applicant.FieldScore]; ok {
		t.Fatal("score must not be written")
	}
	if fields[applicant.FieldFollowUps] != `["Start date?"]` {
		t.Fatalf("follow-ups must still be written, got %v", fields[applicant.FieldFollowUps])
	}
}

func TestSanitizeKeepsAngleBracketText(t *testing.T) {
	e := New(nil, nil, 0, nil)

	cases := []struct {
		in   string
		want string
	}{
		{in: "Uses List<T> generics in C++?", want: "Uses List<T> generics in C++?"},
		{in: "<p>Has shipped Map<K, V> helpers</p>", want: "Has shipped Map<K, V> helpers"},
		{in: "Is 3 < 5 years enough?", want: "Is 3 < 5 years enough?"},
		{in: `<a href="https://example.com">Portfolio</a> & <strong>OSS</strong>`, want: "Portfolio & OSS"},
		{in: "Ask<br/>again", want: "Askagain"},
		{in: "<script>alert(1)</script>", want: ""},
	}

	for _, tc := range cases {
		if got := e.sanitize(tc.in); got != tc.want {
			t.Fatalf("sanitize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
