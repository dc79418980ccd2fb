package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/news-guard/newsguard/internal/factcheck"
	"github.com/news-guard/newsguard/internal/kafka"
	"github.com/news-guard/newsguard/internal/metrics"
	"github.com/news-guard/newsguard/internal/models"
	"github.com/rs/zerolog/log"
)

// opposingScore pads the score map with token probabilities for the labels
// the verdict argues against, so downstream consumers always see a
// distribution rather than a single entry.
const opposingScore = 0.1

type factChecker interface {
	CheckText(ctx context.Context, text string, opts factcheck.Options) (factcheck.Result, error)
	CheckImage(ctx context.Context, imageDataURI string) (factcheck.Result, error)
}

type logStore interface {
	Create(ctx context.Context, entry *models.AnalysisLog) error
}

// EventPublisher publishes analysis events; nil disables publishing.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, event kafka.AnalysisEvent) error
}

// ImageStore archives submitted images; nil disables archival.
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// AnalysisService runs fact-checks and handles every after-the-fact side
// effect: activity logging, event publishing, image archival. Side-effect
// failures never alter or fail the returned result.
type AnalysisService struct {
	checker factChecker
	logs    logStore
	events  EventPublisher // optional
	images  ImageStore     // optional
}

// NewAnalysisService creates a new AnalysisService. events and images may be nil.
func NewAnalysisService(checker factChecker, logs logStore, events EventPublisher, images ImageStore) *AnalysisService {
	return &AnalysisService{checker: checker, logs: logs, events: events, images: images}
}

// AnalyzeText fact-checks text and logs the outcome for the user.
func (s *AnalysisService) AnalyzeText(ctx context.Context, userID uuid.UUID, req *models.TextCheckRequest) (factcheck.Result, error) {
	start := time.Now()
	result, err := s.checker.CheckText(ctx, req.Text, factcheck.Options{
		SearchQuery: req.SearchQuery,
		MaxResults:  req.MaxResults,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return factcheck.Result{}, err
	}
	metrics.AnalysisDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	metrics.AnalysesTotal.WithLabelValues("text", string(result.Verdict)).Inc()

	s.record(ctx, userID, "text", req.Text, nil, result)
	return result, nil
}

// AnalyzeImage fact-checks an image data URI and logs the outcome. When an
// archive bucket is configured the raw image is stored there and the log
// references the archive URL instead of the full data URI.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, userID uuid.UUID, req *models.ImageCheckRequest) (factcheck.Result, error) {
	start := time.Now()
	result, err := s.checker.CheckImage(ctx, req.ImageBase64)
	if err != nil {
		return factcheck.Result{}, err
	}
	metrics.AnalysisDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	metrics.AnalysesTotal.WithLabelValues("image", string(result.Verdict)).Inc()

	inputData := s.archiveImage(ctx, req.ImageBase64)

	var extracted *string
	if result.AdditionalContext != "" {
		extracted = &result.AdditionalContext
	}
	s.record(ctx, userID, "image", inputData, extracted, result)
	return result, nil
}

// record persists the analysis and publishes its event. Best effort: every
// failure here is logged and swallowed.
func (s *AnalysisService) record(ctx context.Context, userID uuid.UUID, analysisType, inputData string, extracted *string, result factcheck.Result) {
	if userID == uuid.Nil {
		log.Warn().Msg("Skipping analysis log save: no user ID")
		return
	}

	entry := &models.AnalysisLog{
		ID:               uuid.New(),
		UserID:           userID,
		AnalysisType:     analysisType,
		InputData:        inputData,
		ResultLabel:      string(result.Verdict),
		ResultConfidence: result.Confidence.Score(),
		ResultAllScores:  marshalAllScores(result),
		ResultReferences: marshalReferences(result.Sources),
		ExtractedText:    extracted,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("analysis_type", analysisType).Msg("Failed to save analysis log")
		return
	}
	log.Info().Str("log_id", entry.ID.String()).Str("user_id", userID.String()).Msg("Analysis log saved")

	if s.events == nil {
		return
	}
	event := kafka.AnalysisEvent{
		LogID:        entry.ID,
		UserID:       userID,
		AnalysisType: analysisType,
		Verdict:      string(result.Verdict),
		Confidence:   result.Confidence.Score(),
		CreatedAt:    entry.CreatedAt,
	}
	if err := s.events.PublishAnalysis(ctx, event); err != nil {
		log.Error().Err(err).Str("log_id", entry.ID.String()).Msg("Failed to publish analysis event")
	}
}

// archiveImage uploads the decoded image and returns its archive URL, or the
// original data URI when archival is unavailable.
func (s *AnalysisService) archiveImage(ctx context.Context, dataURI string) string {
	if s.images == nil {
		return dataURI
	}

	data, contentType, err := decodeDataURI(dataURI)
	if err != nil {
		log.Warn().Err(err).Msg("Could not decode image for archival, logging data URI")
		return dataURI
	}

	key := "images/" + uuid.New().String()
	if err := s.images.Upload(ctx, key, data, contentType); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Image archive upload failed")
		return dataURI
	}
	if url := s.images.PublicURL(key); url != "" {
		return url
	}
	return key
}

// marshalAllScores builds the score map: the verdict gets its mapped
// confidence, and the two opposing labels get the fixed padding score.
func marshalAllScores(result factcheck.Result) string {
	scores := map[string]float64{
		string(result.Verdict): result.Confidence.Score(),
	}
	if result.Verdict == factcheck.VerdictTrue {
		scores[string(factcheck.VerdictFalse)] = opposingScore
	} else {
		scores[string(factcheck.VerdictTrue)] = opposingScore
	}
	if result.Verdict == factcheck.VerdictMisleading {
		scores[string(factcheck.VerdictUnverifiable)] = opposingScore
	} else {
		scores[string(factcheck.VerdictMisleading)] = opposingScore
	}

	raw, err := json.Marshal(scores)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// marshalReferences converts result sources into logged references, order
// preserved. Nil when there are no sources.
func marshalReferences(sources []factcheck.Source) *string {
	if len(sources) == 0 {
		return nil
	}
	refs := make([]models.Reference, 0, len(sources))
	for _, src := range sources {
		reason := src.Title
		if reason == "" {
			reason = "Source reference"
		}
		refs = append(refs, models.Reference{
			Reason:      reason,
			Link:        src.URL,
			SourceTitle: src.Title,
		})
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil
	}
	out := string(raw)
	return &out
}

// decodeDataURI splits a data:image/...;base64,payload URI into bytes and
// content type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	contentType, _, _ := strings.Cut(meta, ";")
	if !strings.Contains(meta, "base64") {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64: %w", err)
	}
	return data, contentType, nil
}
