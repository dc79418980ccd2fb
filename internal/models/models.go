package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey represents an API key for authentication
type APIKey struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	KeyHash           string    `json:"-"`
	Status            string    `json:"status"`       // active, disabled
	QuotaPeriod       string    `json:"quota_period"` // daily, weekly, monthly, yearly
	QuotaChars        int64     `json:"quota_chars"`
	UsedCharsInPeriod int64     `json:"used_chars_in_period"`
	PeriodStartedAt   time.Time `json:"period_started_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// AnalysisLog is one persisted fact-check analysis (text or image).
type AnalysisLog struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	AnalysisType     string    `json:"analysis_type"` // text, image
	InputData        string    `json:"input_data"`    // raw text or image data URI / archive URL
	ResultLabel      string    `json:"result_label"`  // verdict
	ResultConfidence float64   `json:"result_confidence"`
	ResultAllScores  string    `json:"result_all_scores"` // JSON object label -> score
	ResultReferences *string   `json:"result_references,omitempty"` // JSON array of Reference
	ExtractedText    *string   `json:"extracted_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Reference is a cited source attached to a logged analysis.
type Reference struct {
	Reason      string `json:"reason"`
	Link        string `json:"link,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
}

// CreateUserRequest is the body of POST /admin/users
type CreateUserRequest struct {
	Email string `json:"email"`
}

// CreateUserResponse carries the provisioned user and their first API key.
// The plain key appears only here; the database keeps only its hashes.
type CreateUserResponse struct {
	User   *User     `json:"user"`
	APIKey string    `json:"api_key"`
	KeyID  uuid.UUID `json:"key_id"`
}

// TextCheckRequest is the body of POST /v1/factcheck/text
type TextCheckRequest struct {
	Text        string   `json:"text"`
	SearchQuery string   `json:"search_query,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"` // 1-10
	Temperature *float64 `json:"temperature,omitempty"` // 0-2
	MaxTokens   int      `json:"max_tokens,omitempty"`  // 1-4000
}

// ImageCheckRequest is the body of POST /v1/factcheck/image.
// SearchQuery and the tuning fields are accepted for wire compatibility but
// not forwarded; the image flow derives its own query from extracted text.
type ImageCheckRequest struct {
	ImageBase64 string   `json:"image_base64"` // data:image/... URI
	SearchQuery string   `json:"search_query,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}
