package factcheck

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Defaults used by field-level coercion.
const (
	defaultSourceTitle = "Unknown source"
	defaultSourceURL   = "#"
	defaultExplanation = "No explanation provided"
)

// Normalize parses raw model output into a Result. It is a total function:
// any input, including garbage, yields a fully populated Result. Parse
// failure degrades to unverifiable/low; schema mismatches are repaired
// field by field rather than rejected wholesale. The timestamp is always
// stamped here, overwriting anything the model supplied.
func Normalize(raw, fallbackClaim string) Result {
	now := time.Now().UTC().Format(time.RFC3339)

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return Result{
			Claim:       fallbackClaim,
			Verdict:     VerdictUnverifiable,
			Confidence:  ConfidenceLow,
			Explanation: fmt.Sprintf("Failed to parse model response: %v", err),
			Sources:     []Source{},
			Timestamp:   now,
		}
	}

	res := Result{
		Claim:       asString(obj["claim"], fallbackClaim),
		Verdict:     ParseVerdict(asString(obj["verdict"], "")),
		Confidence:  coerceConfidence(asString(obj["confidence"], "")),
		Explanation: asString(obj["explanation"], defaultExplanation),
		Sources:     coerceSources(obj["sources"]),
		Timestamp:   now,
	}
	if extra, ok := obj["additional_context"].(string); ok {
		res.AdditionalContext = extra
	}
	return res
}

// asString keeps any present string, empty included; only a missing or
// non-string value falls back.
func asString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// coerceConfidence defaults to medium: a present-but-invalid confidence is a
// schema wobble, not a verification failure.
func coerceConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return Confidence(s)
	}
	return ConfidenceMedium
}

func coerceRelevance(s string) Relevance {
	switch Relevance(s) {
	case RelevanceHigh, RelevanceMedium, RelevanceLow:
		return Relevance(s)
	}
	return RelevanceMedium
}

// coerceSources repairs the sources array element by element. Anything that
// is not an array yields an empty slice; malformed elements get safe
// defaults instead of being dropped, so ordering is preserved.
func coerceSources(v any) []Source {
	items, ok := v.([]any)
	if !ok {
		return []Source{}
	}

	sources := make([]Source, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			sources = append(sources, Source{
				Title:     defaultSourceTitle,
				URL:       defaultSourceURL,
				Relevance: RelevanceMedium,
			})
			continue
		}
		sources = append(sources, Source{
			Title:     asString(m["title"], defaultSourceTitle),
			URL:       coerceURL(asString(m["url"], "")),
			Relevance: coerceRelevance(asString(m["relevance"], "")),
		})
	}
	return sources
}

func coerceURL(s string) string {
	if s == "" {
		return defaultSourceURL
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return defaultSourceURL
	}
	return s
}
