package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned when content is missing, blank or too large
var ErrInvalidInput = errors.New("invalid input")

const trustedSummary = "Sender domain is trusted. Content checks were skipped."

// ServiceOptions tunes the analysis service
type ServiceOptions struct {
	CacheEnabled     bool
	CacheTTL         time.Duration
	MaxInputBytes    int
	BatchConcurrency int
}

// BatchItem is one inbound email of a batch, or the error that prevented
// mapping it into an Email
type BatchItem struct {
	Email *Email
	Err   error
}

// AnalysisService is the core service wrapping the risk engine and the
// summarizer with validation, caching and batch processing
type AnalysisService struct {
	engine     RiskEngine
	summarizer ContentSummarizer
	cache      CacheRepository
	whitelist  SenderWhitelist
	metrics    MetricsRecorder
	logger     *zap.Logger
	opts       ServiceOptions
	now        func() time.Time
}

// NewAnalysisService creates a new analysis service. cache, whitelist and
// metrics may be nil.
func NewAnalysisService(
	engine RiskEngine,
	summarizer ContentSummarizer,
	cache CacheRepository,
	whitelist SenderWhitelist,
	metrics MetricsRecorder,
	logger *zap.Logger,
	opts ServiceOptions,
) *AnalysisService {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &AnalysisService{
		engine:     engine,
		summarizer: summarizer,
		cache:      cache,
		whitelist:  whitelist,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// validate rejects blank or oversized content before it reaches the engine
func (s *AnalysisService) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: email content is required", ErrInvalidInput)
	}
	if s.opts.MaxInputBytes > 0 && len(text) > s.opts.MaxInputBytes {
		return fmt.Errorf("%w: content is %d bytes, limit is %d", ErrInvalidInput, len(text), s.opts.MaxInputBytes)
	}
	return nil
}

// AnalyzeText scores raw email text
func (s *AnalysisService) AnalyzeText(ctx context.Context, text string) (*AnalysisReport, error) {
	if err := s.validate(text); err != nil {
		return nil, err
	}

	result, cached := s.analyze(ctx, text)
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(result.ThreatLevel, result.RiskScore, cached)
	}

	return &AnalysisReport{
		ProcessingID: uuid.NewString(),
		AnalyzedAt:   s.now(),
		Cached:       cached,
		Analysis:     result,
	}, nil
}

// AnalyzeEmail scores a structured email. Senders on the whitelist bypass
// the content checks.
func (s *AnalysisService) AnalyzeEmail(ctx context.Context, email *Email) (*AnalysisReport, error) {
	if email == nil {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	if s.whitelist != nil && s.whitelist.IsWhitelisted(email.From) {
		s.logger.Info("Skipping content checks for whitelisted sender",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))

		result := trustedResult(s.engine.Recommendations(ThreatLevelLow))
		if s.metrics != nil {
			s.metrics.ObserveAnalysis(result.ThreatLevel, result.RiskScore, false)
		}
		return &AnalysisReport{
			ProcessingID: uuid.NewString(),
			AnalyzedAt:   s.now(),
			Trusted:      true,
			Analysis:     result,
		}, nil
	}

	return s.AnalyzeText(ctx, email.Text())
}

// SummarizeText runs the content summarizer over raw email text
func (s *AnalysisService) SummarizeText(ctx context.Context, text string) (*SummaryReport, error) {
	if err := s.validate(text); err != nil {
		return nil, err
	}

	summary := s.summarizer.Summarize(text)
	if s.metrics != nil {
		s.metrics.ObserveSummary(summary.Category)
	}

	return &SummaryReport{
		ProcessingID: uuid.NewString(),
		AnalyzedAt:   s.now(),
		Summary:      summary,
	}, nil
}

// ProcessBatch analyses and summarises every item. A failing item never
// aborts its siblings; results keep the input order.
func (s *AnalysisService) ProcessBatch(ctx context.Context, items []BatchItem) *BatchResult {
	results := make([]BatchItemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = s.processItem(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Processed: len(items), Results: results}
	for _, r := range results {
		if r.Success {
			batch.Successful++
		} else {
			batch.Errors++
		}
	}

	s.logger.Info("Processed email batch",
		zap.Int("processed", batch.Processed),
		zap.Int("successful", batch.Successful),
		zap.Int("errors", batch.Errors))
	if s.metrics != nil {
		s.metrics.ObserveBatch(batch.Processed, batch.Errors)
	}

	return batch
}

func (s *AnalysisService) processItem(ctx context.Context, item BatchItem) BatchItemResult {
	res := BatchItemResult{AnalyzedAt: s.now()}
	if item.Email != nil {
		res.OriginalID = item.Email.OriginalID()
		res.Subject = item.Email.Subject
		res.From = item.Email.From
	}

	fail := func(err error) BatchItemResult {
		s.logger.Error("Failed to process email",
			zap.String("original_id", res.OriginalID),
			zap.Error(err))
		res.Error = err.Error()
		return res
	}

	if item.Err != nil {
		return fail(item.Err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	report, err := s.AnalyzeEmail(ctx, item.Email)
	if err != nil {
		return fail(err)
	}
	res.Analysis = report.Analysis

	if !report.Trusted {
		summary, err := s.SummarizeText(ctx, item.Email.Text())
		if err != nil {
			return fail(err)
		}
		res.Summary = summary.Summary
	}

	res.Success = true
	return res
}

// analyze consults the cache before running the engine. Cache failures are
// logged and never fail the analysis.
func (s *AnalysisService) analyze(ctx context.Context, text string) (*AnalysisResult, bool) {
	if !s.opts.CacheEnabled {
		return s.engine.Analyze(text), false
	}

	key := ContentKey(text)
	if entry, err := s.cache.Get(ctx, key); err == nil {
		var cached AnalysisResult
		if err := json.Unmarshal(entry.Payload, &cached); err == nil {
			s.logger.Debug("Cache hit for content", zap.String("key", key))
			return &cached, true
		}
		s.logger.Warn("Discarding unreadable cache entry", zap.String("key", key))
	}

	result := s.engine.Analyze(text)

	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to encode analysis for cache", zap.Error(err))
		return result, false
	}
	now := s.now()
	entry := &CacheEntry{
		Key:         key,
		RiskScore:   result.RiskScore,
		ThreatLevel: result.ThreatLevel,
		Payload:     payload,
		LastSeen:    now,
		ExpiresAt:   now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}

	return result, false
}

// ContentKey is the cache key for a piece of content
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func trustedResult(recommendations []string) *AnalysisResult {
	return &AnalysisResult{
		ThreatLevel:        ThreatLevelLow,
		DetectedThreats:    []string{},
		DomainAnalysis:     []string{},
		URLAnalysis:        []string{},
		EmailAddresses:     []string{},
		Domains:            []string{},
		URLs:               []string{},
		PhoneNumbers:       []string{},
		Lookalikes:         []Lookalike{},
		SuspiciousSegments: []Evidence{},
		Recommendations:    recommendations,
		Summary:            trustedSummary,
	}
}
