package core

import (
	"context"
)

// RiskEngine scores raw email text for fraud and phishing intent
type RiskEngine interface {
	// Analyze never fails for a string input; detector failures become risk signals
	Analyze(text string) *AnalysisResult

	// Recommendations returns the fixed advice list for a threat level
	Recommendations(level ThreatLevel) []string
}

// ContentSummarizer extracts category, sentiment, urgency and action items
type ContentSummarizer interface {
	Summarize(text string) *SummaryResult
}

// CacheRepository defines the interface for caching analysis results
type CacheRepository interface {
	// Get retrieves a cached entry by key
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// SenderWhitelist reports whether a sender belongs to a trusted domain
type SenderWhitelist interface {
	IsWhitelisted(from string) bool
}

// MetricsRecorder receives service level observations
type MetricsRecorder interface {
	ObserveAnalysis(level ThreatLevel, score int, cached bool)
	ObserveSummary(category Category)
	ObserveBatch(processed, failed int)
}
