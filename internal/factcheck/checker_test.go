package factcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/news-guard/newsguard/internal/llm"
	"github.com/news-guard/newsguard/internal/search"
)

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

// fakeSearch answers each query from a fixed table.
type fakeSearch struct {
	mu      sync.Mutex
	results map[string][]search.Result
	err     error
	queries []string
}

func (f *fakeSearch) SearchNews(ctx context.Context, query string, limit int) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	results := f.results[query]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// fakeCompleter returns a canned response and records the last call.
type fakeCompleter struct {
	response string
	err      error

	lastSystem   string
	lastMessages []llm.Message
	lastOpts     llm.Options
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, messages []llm.Message, opts llm.Options) (string, error) {
	f.lastSystem = systemPrompt
	f.lastMessages = messages
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestCheckText_TooShort(t *testing.T) {
	c := NewChecker(&fakeSearch{}, &fakeCompleter{}, Config{})
	_, err := c.CheckText(context.Background(), "short", Options{})
	if !errors.Is(err, ErrTextTooShort) {
		t.Errorf("expected ErrTextTooShort, got %v", err)
	}
}

func TestCheckText_Success(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"The moon is made of rock": {
			{Title: "Geology of the Moon", Link: "https://example.org/moon", Snippet: "Basalt and anorthosite."},
		},
	}}
	fc := &fakeCompleter{response: `{
		"claim": "The moon is made of rock",
		"verdict": "true",
		"confidence": "high",
		"explanation": "Confirmed by samples.",
		"sources": [{"title": "Geology of the Moon", "url": "https://example.org/moon", "relevance": "high"}]
	}`}

	c := NewChecker(fs, fc, Config{MaxResults: 5, Temperature: 0.2, MaxTokens: 2000})
	res, err := c.CheckText(context.Background(), "The moon is made of rock", Options{})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if res.Verdict != VerdictTrue || res.Confidence != ConfidenceHigh {
		t.Errorf("verdict/confidence = %s/%s", res.Verdict, res.Confidence)
	}
	if len(res.Sources) != 1 {
		t.Errorf("sources = %+v", res.Sources)
	}
	if !fc.lastOpts.JSONMode {
		t.Error("completion not requested in JSON mode")
	}
	if fc.lastSystem == "" {
		t.Error("system prompt not supplied")
	}
	userMsg := fc.lastMessages[0].Parts[0].Text
	if !strings.Contains(userMsg, "The moon is made of rock") {
		t.Errorf("claim missing from prompt: %q", userMsg)
	}
	if !strings.Contains(userMsg, "https://example.org/moon") {
		t.Errorf("search context missing from prompt: %q", userMsg)
	}
	if !strings.Contains(userMsg, "Search Results for Context:") {
		t.Errorf("text context header missing from prompt: %q", userMsg)
	}
}

// A failed completion yields a degraded result, not an error.
func TestCheckText_CompletionFailureDegrades(t *testing.T) {
	fc := &fakeCompleter{err: fmt.Errorf("provider exploded")}
	c := NewChecker(&fakeSearch{}, fc, Config{})

	res, err := c.CheckText(context.Background(), "a sufficiently long claim", Options{})
	if err != nil {
		t.Fatalf("downstream failure must not error: %v", err)
	}
	if res.Verdict != VerdictUnverifiable || res.Confidence != ConfidenceLow {
		t.Errorf("degraded verdict/confidence = %s/%s", res.Verdict, res.Confidence)
	}
	if len(res.Sources) != 0 {
		t.Errorf("degraded sources = %+v", res.Sources)
	}
	if res.Claim != "a sufficiently long claim" {
		t.Errorf("claim = %q", res.Claim)
	}
}

func TestCheckText_NonJSONResponseDegrades(t *testing.T) {
	fc := &fakeCompleter{response: "I cannot answer in JSON, sorry."}
	c := NewChecker(&fakeSearch{}, fc, Config{})

	res, err := c.CheckText(context.Background(), "another long enough claim", Options{})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if res.Verdict != VerdictUnverifiable || res.Confidence != ConfidenceLow {
		t.Errorf("verdict/confidence = %s/%s", res.Verdict, res.Confidence)
	}
}

// Search failure is absorbed: the model still runs, with the no-results
// context.
func TestCheckText_SearchFailureTolerated(t *testing.T) {
	fs := &fakeSearch{err: fmt.Errorf("search down")}
	fc := &fakeCompleter{response: `{"verdict":"unverifiable","confidence":"low","explanation":"No sources."}`}
	c := NewChecker(fs, fc, Config{})

	res, err := c.CheckText(context.Background(), "claim with no reachable search", Options{})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if res.Verdict != VerdictUnverifiable {
		t.Errorf("verdict = %s", res.Verdict)
	}
	userMsg := fc.lastMessages[0].Parts[0].Text
	if !strings.Contains(userMsg, "No search results available for this query.") {
		t.Errorf("expected no-results context, got %q", userMsg)
	}
}

func TestCheckText_CustomSearchQuery(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{}}
	fc := &fakeCompleter{response: `{"verdict":"false","confidence":"medium"}`}
	c := NewChecker(fs, fc, Config{})

	_, err := c.CheckText(context.Background(), "the text of the claim itself",
		Options{SearchQuery: "override query"})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if len(fs.queries) != 1 || fs.queries[0] != "override query" {
		t.Errorf("queries = %v", fs.queries)
	}
}

func TestMergeResults_DedupAndOrder(t *testing.T) {
	branches := [][]search.Result{
		{
			{Title: "A", Link: "https://x/a"},
			{Title: "B", Link: "https://x/b"},
		},
		{
			{Title: "B again", Link: "https://x/b"},
			{Title: "C", Link: "https://x/c"},
		},
		{
			{Title: "D", Link: "https://x/d"},
		},
	}

	merged := mergeResults(branches, 10)
	links := make([]string, len(merged))
	for i, r := range merged {
		links[i] = r.Link
	}
	want := []string{"https://x/a", "https://x/b", "https://x/c", "https://x/d"}
	if len(links) != len(want) {
		t.Fatalf("links = %v", links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %s, want %s", i, links[i], want[i])
		}
	}
	// First occurrence wins on duplicate links.
	if merged[1].Title != "B" {
		t.Errorf("dedup kept %q, want first occurrence", merged[1].Title)
	}
}

func TestMergeResults_Truncates(t *testing.T) {
	branches := [][]search.Result{{
		{Link: "https://x/1"}, {Link: "https://x/2"}, {Link: "https://x/3"},
	}}
	merged := mergeResults(branches, 2)
	if len(merged) != 2 {
		t.Errorf("len = %d, want 2", len(merged))
	}
}

// Multi-sentence input fans out one search per sentence; results merge in
// sentence order regardless of which search answers first.
func TestCheckText_FanOutMerge(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"First claim":  {{Title: "F", Link: "https://x/f"}},
		"Second claim": {{Title: "S", Link: "https://x/s"}},
		"Third claim":  {{Title: "T", Link: "https://x/t"}},
	}}
	fc := &fakeCompleter{response: `{"verdict":"true","confidence":"medium"}`}
	c := NewChecker(fs, fc, Config{MaxResults: 6})

	_, err := c.CheckText(context.Background(), "First claim. Second claim. Third claim.", Options{})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	userMsg := fc.lastMessages[0].Parts[0].Text
	fIdx := strings.Index(userMsg, "https://x/f")
	sIdx := strings.Index(userMsg, "https://x/s")
	tIdx := strings.Index(userMsg, "https://x/t")
	if fIdx < 0 || sIdx < 0 || tIdx < 0 {
		t.Fatalf("missing branch results in context: %q", userMsg)
	}
	if !(fIdx < sIdx && sIdx < tIdx) {
		t.Errorf("branch order not preserved: %d %d %d", fIdx, sIdx, tIdx)
	}
}

func TestCheckImage_InvalidURI(t *testing.T) {
	c := NewChecker(&fakeSearch{}, &fakeCompleter{}, Config{})
	_, err := c.CheckImage(context.Background(), "https://example.org/cat.png")
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

// stepCompleter returns a different response per call: first the OCR pass,
// then the fact-check pass.
type stepCompleter struct {
	responses []string
	errs      []error
	calls     []llm.Options
	messages  [][]llm.Message
}

func (f *stepCompleter) Complete(ctx context.Context, systemPrompt string, messages []llm.Message, opts llm.Options) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, opts)
	f.messages = append(f.messages, messages)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func TestCheckImage_Success(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"Breaking: giant asteroid": {{Title: "No asteroid", Link: "https://example.org/a", Snippet: "Hoax debunked."}},
	}}
	fc := &stepCompleter{responses: []string{
		"Breaking: giant asteroid. More text.",
		`{"claim":"Giant asteroid headline","verdict":"false","confidence":"high","explanation":"Hoax.","sources":[]}`,
	}}
	c := NewChecker(fs, fc, Config{})

	res, err := c.CheckImage(context.Background(), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("CheckImage: %v", err)
	}
	if res.Verdict != VerdictFalse || res.Confidence != ConfidenceHigh {
		t.Errorf("verdict/confidence = %s/%s", res.Verdict, res.Confidence)
	}
	if len(fc.calls) != 2 {
		t.Fatalf("completer called %d times", len(fc.calls))
	}
	if !fc.calls[0].Vision || fc.calls[0].JSONMode {
		t.Errorf("extraction opts = %+v", fc.calls[0])
	}
	if !fc.calls[1].Vision || !fc.calls[1].JSONMode {
		t.Errorf("fact-check opts = %+v", fc.calls[1])
	}
	// Only the first extracted sentence is searched.
	if len(fs.queries) != 1 || fs.queries[0] != "Breaking: giant asteroid" {
		t.Errorf("queries = %v", fs.queries)
	}
	// The image flow labels its context block with its own header.
	factCheckText := fc.messages[1][0].Parts[0].Text
	if !strings.Contains(factCheckText, "Relevant search results for fact-checking:") {
		t.Errorf("image context header missing from prompt: %q", factCheckText)
	}
	if !strings.Contains(factCheckText, "https://example.org/a") {
		t.Errorf("search context missing from prompt: %q", factCheckText)
	}
	// Both passes carry the image.
	for i, msgs := range fc.messages {
		found := false
		for _, p := range msgs[0].Parts {
			if p.ImageURL != "" {
				found = true
			}
		}
		if !found {
			t.Errorf("call %d has no image part", i)
		}
	}
}

func TestCheckImage_ExtractionFailureDegrades(t *testing.T) {
	fc := &stepCompleter{errs: []error{fmt.Errorf("vision model down")}}
	c := NewChecker(&fakeSearch{}, fc, Config{})

	res, err := c.CheckImage(context.Background(), "data:image/jpeg;base64,BBBB")
	if err != nil {
		t.Fatalf("extraction failure must not error: %v", err)
	}
	if res.Verdict != VerdictUnverifiable || res.Confidence != ConfidenceLow {
		t.Errorf("verdict/confidence = %s/%s", res.Verdict, res.Confidence)
	}
	if res.Claim != "Image content analysis" {
		t.Errorf("claim = %q", res.Claim)
	}
}

func TestCheckImage_SearchFailureTolerated(t *testing.T) {
	fs := &fakeSearch{err: fmt.Errorf("search down")}
	fc := &stepCompleter{responses: []string{
		"Some extracted headline.",
		`{"verdict":"unverifiable","confidence":"low","explanation":"No context."}`,
	}}
	c := NewChecker(fs, fc, Config{})

	res, err := c.CheckImage(context.Background(), "data:image/png;base64,CCCC")
	if err != nil {
		t.Fatalf("CheckImage: %v", err)
	}
	if res.Verdict != VerdictUnverifiable {
		t.Errorf("verdict = %s", res.Verdict)
	}
}

func TestNewChecker_ClampsConfig(t *testing.T) {
	fc := &fakeCompleter{response: `{"verdict":"true","confidence":"low"}`}
	fs := &fakeSearch{}
	c := NewChecker(fs, fc, Config{MaxResults: 99, MaxTokens: -1})
	if c.cfg.MaxResults != 5 {
		t.Errorf("MaxResults = %d", c.cfg.MaxResults)
	}
	if c.cfg.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d", c.cfg.MaxTokens)
	}
}

func TestCheckText_OptionOverrides(t *testing.T) {
	fc := &fakeCompleter{response: `{"verdict":"true","confidence":"low"}`}
	c := NewChecker(&fakeSearch{}, fc, Config{MaxResults: 5, Temperature: 0.2, MaxTokens: 2000})

	temp := 0.7
	_, err := c.CheckText(context.Background(), "a long enough claim here",
		Options{Temperature: &temp, MaxTokens: 500})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if fc.lastOpts.Temperature != 0.7 {
		t.Errorf("temperature = %v", fc.lastOpts.Temperature)
	}
	if fc.lastOpts.MaxTokens != 500 {
		t.Errorf("max tokens = %v", fc.lastOpts.MaxTokens)
	}

	// Out-of-range values fall back to defaults.
	_, err = c.CheckText(context.Background(), "a long enough claim here",
		Options{MaxTokens: 9999})
	if err != nil {
		t.Fatalf("CheckText: %v", err)
	}
	if fc.lastOpts.MaxTokens != 2000 {
		t.Errorf("max tokens = %v, want default", fc.lastOpts.MaxTokens)
	}
}
