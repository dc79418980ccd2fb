package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/news-guard/newsguard/internal/auth"
	"github.com/news-guard/newsguard/internal/factcheck"
	"github.com/news-guard/newsguard/internal/models"
)

// fakeAnalysis is a minimal AnalysisRunner for tests.
type fakeAnalysis struct {
	analyzeText  func(context.Context, uuid.UUID, *models.TextCheckRequest) (factcheck.Result, error)
	analyzeImage func(context.Context, uuid.UUID, *models.ImageCheckRequest) (factcheck.Result, error)
}

func (f *fakeAnalysis) AnalyzeText(ctx context.Context, userID uuid.UUID, req *models.TextCheckRequest) (factcheck.Result, error) {
	if f.analyzeText != nil {
		return f.analyzeText(ctx, userID, req)
	}
	return factcheck.Result{Verdict: factcheck.VerdictTrue, Confidence: factcheck.ConfidenceHigh, Sources: []factcheck.Source{}}, nil
}

func (f *fakeAnalysis) AnalyzeImage(ctx context.Context, userID uuid.UUID, req *models.ImageCheckRequest) (factcheck.Result, error) {
	if f.analyzeImage != nil {
		return f.analyzeImage(ctx, userID, req)
	}
	return factcheck.Result{Verdict: factcheck.VerdictFalse, Confidence: factcheck.ConfidenceMedium, Sources: []factcheck.Source{}}, nil
}

type fakeLogLister struct {
	entries []*models.AnalysisLog
	gotUser uuid.UUID
	gotLim  int
	gotCur  *time.Time
}

func (f *fakeLogLister) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.AnalysisLog, error) {
	f.gotUser = userID
	f.gotLim = limit
	f.gotCur = cursor
	return f.entries, nil
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), auth.UserIDKey, uuid.New())
	ctx = context.WithValue(ctx, auth.APIKeyIDKey, uuid.New())
	return req.WithContext(ctx)
}

// TestCheckText_Unauthorized asserts 401 when request context has no user.
func TestCheckText_Unauthorized(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	body := bytes.NewBufferString(`{"text":"a sufficiently long claim"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/factcheck/text", body)
	rec := httptest.NewRecorder()

	h.CheckText(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestCheckText_InvalidBody asserts 400 for invalid JSON.
func TestCheckText_InvalidBody(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	req := authedRequest(http.MethodPost, "/v1/factcheck/text", bytes.NewBufferString(`{invalid`))
	rec := httptest.NewRecorder()

	h.CheckText(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestCheckText_TooShort asserts 400 for text under 10 characters.
func TestCheckText_TooShort(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	req := authedRequest(http.MethodPost, "/v1/factcheck/text", bytes.NewBufferString(`{"text":"short"}`))
	rec := httptest.NewRecorder()

	h.CheckText(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckText_RangeValidation(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	for _, body := range []string{
		`{"text":"a sufficiently long claim","max_results":11}`,
		`{"text":"a sufficiently long claim","temperature":2.5}`,
		`{"text":"a sufficiently long claim","max_tokens":5000}`,
	} {
		req := authedRequest(http.MethodPost, "/v1/factcheck/text", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.CheckText(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

// TestCheckText_Success asserts 200 with the result body and no-store caching.
func TestCheckText_Success(t *testing.T) {
	h := NewHandler(&fakeAnalysis{
		analyzeText: func(ctx context.Context, userID uuid.UUID, req *models.TextCheckRequest) (factcheck.Result, error) {
			return factcheck.Result{
				Claim:       req.Text,
				Verdict:     factcheck.VerdictTrue,
				Confidence:  factcheck.ConfidenceHigh,
				Explanation: "Verified.",
				Sources:     []factcheck.Source{{Title: "Ref", URL: "https://example.org/r", Relevance: factcheck.RelevanceHigh}},
				Timestamp:   "2026-01-01T00:00:00Z",
			}, nil
		},
	}, nil, nil)

	req := authedRequest(http.MethodPost, "/v1/factcheck/text", bytes.NewBufferString(`{"text":"The moon is made of rock"}`))
	rec := httptest.NewRecorder()

	h.CheckText(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}
	var res factcheck.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Verdict != factcheck.VerdictTrue || len(res.Sources) != 1 {
		t.Errorf("result = %+v", res)
	}
}

// TestCheckImage_BadPrefix asserts 400 for non-image data URIs.
func TestCheckImage_BadPrefix(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	payload := `{"image_base64":"data:text/plain;base64,` + strings.Repeat("A", 200) + `"}`
	req := authedRequest(http.MethodPost, "/v1/factcheck/image", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	h.CheckImage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestCheckImage_TooShort asserts 400 for truncated payloads.
func TestCheckImage_TooShort(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	req := authedRequest(http.MethodPost, "/v1/factcheck/image",
		bytes.NewBufferString(`{"image_base64":"data:image/png;base64,AAAA"}`))
	rec := httptest.NewRecorder()

	h.CheckImage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckImage_Success(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	payload := `{"image_base64":"data:image/png;base64,` + strings.Repeat("A", 200) + `"}`
	req := authedRequest(http.MethodPost, "/v1/factcheck/image", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	h.CheckImage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res factcheck.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Verdict != factcheck.VerdictFalse {
		t.Errorf("verdict = %s", res.Verdict)
	}
}

func TestListLogs(t *testing.T) {
	lister := &fakeLogLister{entries: []*models.AnalysisLog{
		{ID: uuid.New(), AnalysisType: "text", ResultLabel: "true"},
	}}
	h := NewHandler(&fakeAnalysis{}, lister, nil)

	req := authedRequest(http.MethodGet, "/v1/logs?limit=50&cursor=2026-01-15T12:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.ListLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lister.gotLim != 50 {
		t.Errorf("limit = %d", lister.gotLim)
	}
	if lister.gotCur == nil || lister.gotCur.Format(time.RFC3339) != "2026-01-15T12:00:00Z" {
		t.Errorf("cursor = %v", lister.gotCur)
	}
	var resp map[string][]*models.AnalysisLog
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["logs"]) != 1 {
		t.Errorf("logs = %+v", resp)
	}
}

func TestListLogs_DefaultsAndClamps(t *testing.T) {
	lister := &fakeLogLister{}
	h := NewHandler(&fakeAnalysis{}, lister, nil)

	req := authedRequest(http.MethodGet, "/v1/logs?limit=500&cursor=not-a-time", nil)
	rec := httptest.NewRecorder()

	h.ListLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lister.gotLim != 20 {
		t.Errorf("out-of-range limit = %d, want default 20", lister.gotLim)
	}
	if lister.gotCur != nil {
		t.Errorf("bad cursor parsed as %v", lister.gotCur)
	}
}

func TestHealth_NoDB(t *testing.T) {
	h := NewHandler(&fakeAnalysis{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
