package factcheck

// Verdict is the four-valued outcome of a fact-check.
type Verdict string

const (
	VerdictTrue         Verdict = "true"
	VerdictFalse        Verdict = "false"
	VerdictMisleading   Verdict = "misleading"
	VerdictUnverifiable Verdict = "unverifiable"
)

// ParseVerdict maps a raw string to a Verdict, defaulting to unverifiable.
// The system never asserts a stronger verdict than validation supports.
func ParseVerdict(s string) Verdict {
	switch Verdict(s) {
	case VerdictTrue, VerdictFalse, VerdictMisleading, VerdictUnverifiable:
		return Verdict(s)
	}
	return VerdictUnverifiable
}

// Confidence is the qualitative confidence of a verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Numeric scores surfaced at the API boundary. The mapping is fixed and
// applied at every call site that converts confidence to a number.
const (
	ScoreHigh   = 0.9
	ScoreMedium = 0.6
	ScoreLow    = 0.3
)

// Score returns the numeric confidence for c.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return ScoreHigh
	case ConfidenceMedium:
		return ScoreMedium
	}
	return ScoreLow
}

// Relevance rates how relevant a cited source is to the claim.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// Source is one cited source in a fact-check result.
type Source struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Relevance Relevance `json:"relevance"`
}

// Result is the final output of a fact-check. Every field is populated on
// every path; the degraded path fills construction-time defaults.
type Result struct {
	Claim             string     `json:"claim"`
	Verdict           Verdict    `json:"verdict"`
	Confidence        Confidence `json:"confidence"`
	Explanation       string     `json:"explanation"`
	Sources           []Source   `json:"sources"`
	AdditionalContext string     `json:"additional_context,omitempty"`
	Timestamp         string     `json:"timestamp"` // RFC 3339 UTC
}
