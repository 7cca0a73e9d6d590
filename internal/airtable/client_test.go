package airtable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	auth   string
}

type fakeAirtable struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, n int)
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.EscapedPath(),
		query:  r.URL.RawQuery,
		body:   string(body),
		auth:   r.Header.Get("Authorization"),
	})
	f.mu.Unlock()

	f.handler(w, r, n)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) (*Client, *fakeAirtable) {
	t.Helper()

	fake := &fakeAirtable{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "secret-token", "appBase")
	client.APIURL = server.URL

	return client, fake
}

func TestListRecordsFollowsOffset(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request, n int) {
		switch n {
		case 0:
			io.WriteString(w, `{"records":[{"id":"rec1","fields":{"Applicant ID":"a@example.com"}}],"offset":"next"}`)
		default:
			io.WriteString(w, `{"records":[{"id":"rec2","fields":{"Applicant ID":"b@example.com"}}]}`)
		}
	})

	records, err := client.ListRecords(context.Background(), "Applicants", FieldNotEmpty("Compressed JSON"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 || records[0].ID != "rec1" || records[1].ID != "rec2" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.requests))
	}

	first := fake.requests[0]
	if first.path != "/v0/appBase/Applicants" {
		t.Fatalf("unexpected path: %s", first.path)
	}
	if first.auth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header: %q", first.auth)
	}
	if !strings.Contains(first.query, "filterByFormula=%7BCompressed+JSON%7D+%21%3D+%22%22") {
		t.Fatalf("filter formula not sent: %s", first.query)
	}
	if !strings.Contains(fake.requests[1].query, "offset=next") {
		t.Fatalf("offset not sent on second page: %s", fake.requests[1].query)
	}
}

func TestGetRecordEscapesTableName(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		io.WriteString(w, `{"id":"recP","fields":{"Full Name":"Ada"}}`)
	})

	record, err := client.GetRecord(context.Background(), "Personal Details", "recP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Fields["Full Name"] != "Ada" {
		t.Fatalf("unexpected fields: %+v", record.Fields)
	}

	if got := fake.requests[0].path; got != "/v0/appBase/Personal%20Details/recP" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"NOT_FOUND"}`)
	})

	_, err := client.GetRecord(context.Background(), "Work Experience", "recMissing")
	if err == nil {
		t.Fatal("expected error")
	}

	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestPatchFieldSerializesDocuments(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		io.WriteString(w, `{"id":"rec1","fields":{}}`)
	})

	ctx := context.Background()
	if err := client.PatchField(ctx, "Applicants", "rec1", "LLM Follow-Ups", []string{"a?", "b?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.PatchField(ctx, "Applicants", "rec1", "LLM Score", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var first fieldsPayload
	if err := json.Unmarshal([]byte(fake.requests[0].body), &first); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if first.Fields["LLM Follow-Ups"] != `["a?","b?"]` {
		t.Fatalf("expected serialized list, got %#v", first.Fields["LLM Follow-Ups"])
	}

	var second fieldsPayload
	if err := json.Unmarshal([]byte(fake.requests[1].body), &second); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if second.Fields["LLM Score"] != float64(7) {
		t.Fatalf("expected numeric score, got %#v", second.Fields["LLM Score"])
	}

	if fake.requests[0].method != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", fake.requests[0].method)
	}
}

func TestPatchFieldFailsLoudly(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"bad value"}}`)
	})

	err := client.PatchField(context.Background(), "Applicants", "rec1", "LLM Score", 7)
	if err == nil {
		t.Fatal("expected error")
	}

	if !strings.Contains(err.Error(), "INVALID_VALUE_FOR_COLUMN") {
		t.Fatalf("expected airtable error type in message, got %v", err)
	}
}

func TestInsertRecordReturnsExplicitError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusForbidden)
	})

	record, err := client.InsertRecord(context.Background(), "Shortlisted Leads", map[string]any{"Score Reason": "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if record != nil {
		t.Fatalf("expected no record, got %+v", record)
	}
}

func TestInsertRecordSendsFields(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		io.WriteString(w, `{"id":"recNew","fields":{"Company":"Acme"}}`)
	})

	record, err := client.InsertRecord(context.Background(), "Work Experience", map[string]any{
		"Company":      "Acme",
		"Applicant ID": []string{"rec1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID != "recNew" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if !strings.Contains(fake.requests[0].body, `"fields":{`) {
		t.Fatalf("expected fields envelope, got %s", fake.requests[0].body)
	}
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	originalWait := wait
	var waits []time.Duration
	wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	defer func() { wait = originalWait }()

	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, n int) {
		if n < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"id":"rec1","fields":{}}`)
	})

	if _, err := client.GetRecord(context.Background(), "Applicants", "rec1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(fake.requests))
	}
	if len(waits) != 2 || waits[1] != 2*waits[0] {
		t.Fatalf("expected doubling backoff, got %v", waits)
	}
}

func TestCreateTableUsesMetaAPI(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		io.WriteString(w, `{"id":"tblApplicants","name":"Applicants","primaryFieldId":"fld1"}`)
	})

	table, err := client.CreateTable(context.Background(), TableSpec{
		Name:   "Applicants",
		Fields: []FieldSpec{{Name: "Applicant ID", Type: "email"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if table.ID != "tblApplicants" {
		t.Fatalf("unexpected table: %+v", table)
	}
	if got := fake.requests[0].path; got != "/v0/meta/bases/appBase/tables" {
		t.Fatalf("unexpected path: %s", got)
	}
}
