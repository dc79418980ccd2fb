package factcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/news-guard/newsguard/internal/llm"
	"github.com/news-guard/newsguard/internal/metrics"
	"github.com/news-guard/newsguard/internal/search"
	"github.com/rs/zerolog/log"
)

// Precondition errors: the only cases where the checker fails instead of
// returning a degraded result.
var (
	ErrTextTooShort = errors.New("text must be at least 10 characters long")
	ErrInvalidImage = errors.New("image must be a data:image/ URI")
)

const (
	minTextLen         = 10
	imageFallbackClaim = "Image content analysis"
	imageSearchLimit   = 3

	// Extraction runs cooler than fact-checking for more literal OCR output.
	extractionTemperature = 0.1
	imageTemperature      = 0.2
	imageMaxTokens        = 2000
)

// SearchProvider is the slice of the search client the checker needs.
type SearchProvider interface {
	SearchNews(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// Completer is the slice of the LLM client the checker needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []llm.Message, opts llm.Options) (string, error)
}

// Config carries fact-check defaults applied when a request leaves them unset.
type Config struct {
	MaxResults  int
	Temperature float64
	MaxTokens   int
}

// Options tune a single CheckText call.
type Options struct {
	SearchQuery string
	MaxResults  int
	Temperature *float64
	MaxTokens   int
}

// Checker orchestrates the fact-check pipeline: derive queries, gather
// grounding context, call the model, normalize. Search and model failures
// are absorbed into the result; CheckText and CheckImage only error on bad
// input.
type Checker struct {
	search SearchProvider
	llm    Completer
	cfg    Config
}

// NewChecker creates a new Checker.
func NewChecker(searchClient SearchProvider, completer Completer, cfg Config) *Checker {
	if cfg.MaxResults < 1 || cfg.MaxResults > 10 {
		cfg.MaxResults = 5
	}
	if cfg.MaxTokens < 1 {
		cfg.MaxTokens = 2000
	}
	return &Checker{search: searchClient, llm: completer, cfg: cfg}
}

// CheckText fact-checks a textual claim. Returns an error only when text is
// shorter than 10 characters; every downstream failure yields a degraded
// unverifiable/low result instead.
func (c *Checker) CheckText(ctx context.Context, text string, opts Options) (Result, error) {
	if len([]rune(text)) < minTextLen {
		return Result{}, ErrTextTooShort
	}

	maxResults := opts.MaxResults
	if maxResults < 1 || maxResults > 10 {
		maxResults = c.cfg.MaxResults
	}
	temperature := c.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens < 1 || maxTokens > 4000 {
		maxTokens = c.cfg.MaxTokens
	}

	searchQuery := opts.SearchQuery
	if searchQuery == "" {
		searchQuery = text
	}

	searchContext := c.gatherContext(ctx, searchQuery, maxResults)

	userMsg := fmt.Sprintf(textPromptFormat, text, searchContext)
	raw, err := c.llm.Complete(ctx, systemPrompt,
		[]llm.Message{llm.TextMessage(llm.RoleUser, userMsg)},
		llm.Options{Temperature: temperature, MaxTokens: maxTokens, JSONMode: true},
	)
	if err != nil {
		metrics.CompletionFailures.Inc()
		log.Error().Err(err).Msg("Fact-check completion failed")
		return degraded(text, err), nil
	}

	return Normalize(raw, text), nil
}

// CheckImage fact-checks an image supplied as a data URI. The OCR pass feeds
// only the search query; the fixed fallback claim is used because an image
// has no natural textual claim until the model restates one.
func (c *Checker) CheckImage(ctx context.Context, imageDataURI string) (Result, error) {
	if !strings.HasPrefix(imageDataURI, "data:image/") {
		return Result{}, ErrInvalidImage
	}

	extracted, err := c.llm.Complete(ctx, "",
		[]llm.Message{{
			Role: llm.RoleUser,
			Parts: []llm.Part{
				{Text: extractionInstruction},
				{ImageURL: imageDataURI},
			},
		}},
		llm.Options{Temperature: extractionTemperature, MaxTokens: imageMaxTokens, Vision: true},
	)
	if err != nil {
		metrics.CompletionFailures.Inc()
		log.Error().Err(err).Msg("Image text extraction failed")
		return degraded(imageFallbackClaim, err), nil
	}

	searchContext := noResultsContext
	if extractedText := strings.TrimSpace(extracted); extractedText != "" {
		log.Debug().Int("extracted_len", len(extractedText)).Msg("Extracted text from image")
		if queries := search.ExtractQueries(extractedText); len(queries) > 0 {
			results, err := c.search.SearchNews(ctx, queries[0], imageSearchLimit)
			if err != nil {
				metrics.SearchFailures.Inc()
				log.Warn().Err(err).Msg("Image search failed, proceeding with limited context")
			} else if len(results) > 0 {
				searchContext = renderContext(imageContextHeader, results)
			}
		}
	}

	raw, err := c.llm.Complete(ctx, systemPrompt,
		[]llm.Message{{
			Role: llm.RoleUser,
			Parts: []llm.Part{
				{Text: fmt.Sprintf(imagePromptFormat, searchContext)},
				{ImageURL: imageDataURI},
			},
		}},
		llm.Options{Temperature: imageTemperature, MaxTokens: imageMaxTokens, JSONMode: true, Vision: true},
	)
	if err != nil {
		metrics.CompletionFailures.Inc()
		log.Error().Err(err).Msg("Image fact-check completion failed")
		return degraded(imageFallbackClaim, err), nil
	}

	return Normalize(raw, imageFallbackClaim), nil
}

// gatherContext fans sub-queries out concurrently and renders the merged,
// deduplicated results. Each branch's failure contributes an empty list;
// the merge is branch-index-first so completion order never changes output.
func (c *Checker) gatherContext(ctx context.Context, searchQuery string, maxResults int) string {
	queries := search.ExtractQueries(searchQuery)
	if len(queries) == 0 {
		return noResultsContext
	}

	perQuery := (maxResults + len(queries) - 1) / len(queries)
	branches := make([][]search.Result, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results, err := c.search.SearchNews(ctx, q, perQuery)
			if err != nil {
				metrics.SearchFailures.Inc()
				log.Warn().Err(err).Str("query", q).Msg("Search branch failed, contributing no results")
				return
			}
			branches[i] = results
		}(i, q)
	}
	wg.Wait()

	merged := mergeResults(branches, maxResults)
	if len(merged) == 0 {
		return noResultsContext
	}
	log.Debug().Int("results", len(merged)).Int("queries", len(queries)).Msg("Search context assembled")
	return renderContext(textContextHeader, merged)
}

// mergeResults flattens branches in index order, deduplicates by link with
// first occurrence winning, and truncates to maxResults.
func mergeResults(branches [][]search.Result, maxResults int) []search.Result {
	seen := make(map[string]struct{})
	var merged []search.Result
	for _, branch := range branches {
		for _, r := range branch {
			if _, dup := seen[r.Link]; dup {
				continue
			}
			seen[r.Link] = struct{}{}
			merged = append(merged, r)
			if len(merged) == maxResults {
				return merged
			}
		}
	}
	return merged
}

// renderContext formats results as the numbered grounding block given to
// the model.
func renderContext(header string, results []search.Result) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = "No snippet available"
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n", i+1, title, r.Link, snippet)
		if i < len(results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// degraded builds the fallback result for a contained pipeline failure.
func degraded(claim string, err error) Result {
	return Result{
		Claim:       claim,
		Verdict:     VerdictUnverifiable,
		Confidence:  ConfidenceLow,
		Explanation: fmt.Sprintf("An error occurred: %v", err),
		Sources:     []Source{},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}
