package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubEngine struct {
	mu    sync.Mutex
	calls int
}

func (e *stubEngine) Analyze(text string) *AnalysisResult {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	level := ThreatLevelLow
	score := 10
	if strings.Contains(text, "prince") {
		level, score = ThreatLevelHigh, 90
	}
	return &AnalysisResult{RiskScore: score, ThreatLevel: level, Summary: "stub"}
}

func (e *stubEngine) Recommendations(level ThreatLevel) []string {
	return []string{string(level) + "-1", string(level) + "-2", string(level) + "-3", string(level) + "-4", string(level) + "-5"}
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(text string) *SummaryResult {
	return &SummaryResult{Summary: "summary", Category: CategoryGeneral, WordCount: len(strings.Fields(text))}
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	failSet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*CacheEntry)}
}

func (c *mapCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return e, nil
}

func (c *mapCache) Set(_ context.Context, entry *CacheEntry) error {
	if c.failSet {
		return errors.New("disk full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Cleanup(context.Context) error { return nil }

type domainWhitelist string

func (d domainWhitelist) IsWhitelisted(from string) bool {
	return strings.HasSuffix(from, "@"+string(d))
}

type countingMetrics struct {
	mu        sync.Mutex
	analyses  int
	cached    int
	summaries int
	batches   int
}

func (m *countingMetrics) ObserveAnalysis(_ ThreatLevel, _ int, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses++
	if cached {
		m.cached++
	}
}

func (m *countingMetrics) ObserveSummary(Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries++
}

func (m *countingMetrics) ObserveBatch(int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func newTestService(cache CacheRepository, opts ServiceOptions) (*AnalysisService, *stubEngine, *countingMetrics) {
	engine := &stubEngine{}
	metrics := &countingMetrics{}
	svc := NewAnalysisService(engine, stubSummarizer{}, cache, domainWhitelist("trusted.org"), metrics, zap.NewNop(), opts)
	return svc, engine, metrics
}

func TestAnalyzeTextRejectsBlankInput(t *testing.T) {
	svc, engine, _ := newTestService(nil, ServiceOptions{})

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := svc.AnalyzeText(context.Background(), in)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("input %q: got %v, want ErrInvalidInput", in, err)
		}
	}
	if engine.calls != 0 {
		t.Errorf("engine calls: got %d, want 0", engine.calls)
	}
}

func TestAnalyzeTextRejectsOversizedInput(t *testing.T) {
	svc, _, _ := newTestService(nil, ServiceOptions{MaxInputBytes: 8})

	_, err := svc.AnalyzeText(context.Background(), "this is far too long")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestAnalyzeTextReport(t *testing.T) {
	svc, _, metrics := newTestService(nil, ServiceOptions{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	report, err := svc.AnalyzeText(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ProcessingID == "" {
		t.Error("expected a processing id")
	}
	if !report.AnalyzedAt.Equal(fixed) {
		t.Errorf("analyzed at: got %v, want %v", report.AnalyzedAt, fixed)
	}
	if report.Cached || report.Trusted {
		t.Errorf("flags: got cached=%v trusted=%v", report.Cached, report.Trusted)
	}
	if metrics.analyses != 1 {
		t.Errorf("metrics: got %d analyses, want 1", metrics.analyses)
	}
}

func TestAnalyzeTextUsesCache(t *testing.T) {
	cache := newMapCache()
	svc, engine, metrics := newTestService(cache, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})

	first, err := svc.AnalyzeText(context.Background(), "a nigerian prince writes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.AnalyzeText(context.Background(), "a nigerian prince writes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if engine.calls != 1 {
		t.Errorf("engine calls: got %d, want 1", engine.calls)
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached flags: got %v then %v, want false then true", first.Cached, second.Cached)
	}
	if second.Analysis.RiskScore != first.Analysis.RiskScore || second.Analysis.ThreatLevel != first.Analysis.ThreatLevel {
		t.Errorf("cached analysis differs: %+v vs %+v", second.Analysis, first.Analysis)
	}
	if metrics.cached != 1 {
		t.Errorf("metrics: got %d cached, want 1", metrics.cached)
	}

	entry := cache.entries[ContentKey("a nigerian prince writes")]
	if entry == nil || entry.ThreatLevel != ThreatLevelHigh {
		t.Errorf("cache entry: got %+v", entry)
	}
}

func TestAnalyzeTextCacheFailureIsNotFatal(t *testing.T) {
	cache := newMapCache()
	cache.failSet = true
	svc, _, _ := newTestService(cache, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})

	if _, err := svc.AnalyzeText(context.Background(), "hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnalyzeEmailWhitelistBypass(t *testing.T) {
	svc, engine, _ := newTestService(nil, ServiceOptions{})

	report, err := svc.AnalyzeEmail(context.Background(), &Email{From: "news@trusted.org", Body: "nigerian prince"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Trusted {
		t.Error("expected trusted report")
	}
	if report.Analysis.ThreatLevel != ThreatLevelLow || report.Analysis.RiskScore != 0 {
		t.Errorf("analysis: got %+v", report.Analysis)
	}
	if len(report.Analysis.Recommendations) != 5 || report.Analysis.Recommendations[0] != "low-1" {
		t.Errorf("recommendations: got %v, want the five low-level entries", report.Analysis.Recommendations)
	}
	if engine.calls != 0 {
		t.Errorf("engine calls: got %d, want 0", engine.calls)
	}
}

func TestSummarizeText(t *testing.T) {
	svc, _, metrics := newTestService(nil, ServiceOptions{})

	if _, err := svc.SummarizeText(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank input: got %v, want ErrInvalidInput", err)
	}

	report, err := svc.SummarizeText(context.Background(), "one two three")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.WordCount != 3 {
		t.Errorf("word count: got %d, want 3", report.Summary.WordCount)
	}
	if metrics.summaries != 1 {
		t.Errorf("metrics: got %d summaries, want 1", metrics.summaries)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	svc, _, metrics := newTestService(nil, ServiceOptions{BatchConcurrency: 2})

	items := []BatchItem{
		{Email: &Email{From: "a@example.com", Subject: "Hi", Body: "lunch?", UID: "1"}},
		{Err: errors.New("email must be an object")},
		{Email: &Email{From: "b@example.com", Subject: "Prize", Body: "a nigerian prince", MessageID: "<m2@example.com>"}},
		{Email: &Email{}},
		{Email: &Email{From: "c@trusted.org", Body: "newsletter", UID: "5"}},
	}

	got := svc.ProcessBatch(context.Background(), items)
	if got.Processed != 5 || got.Successful != 3 || got.Errors != 2 {
		t.Errorf("counts: got processed=%d successful=%d errors=%d", got.Processed, got.Successful, got.Errors)
	}

	if !got.Results[0].Success || got.Results[0].OriginalID != "1" || got.Results[0].Summary == nil {
		t.Errorf("result 0: got %+v", got.Results[0])
	}
	if got.Results[1].Success || got.Results[1].Error != "email must be an object" {
		t.Errorf("result 1: got %+v", got.Results[1])
	}
	if got.Results[2].Analysis.ThreatLevel != ThreatLevelHigh || got.Results[2].OriginalID != "<m2@example.com>" {
		t.Errorf("result 2: got %+v", got.Results[2])
	}
	if got.Results[3].Success {
		t.Errorf("result 3: expected failure for empty email, got %+v", got.Results[3])
	}
	if !got.Results[4].Success || got.Results[4].Summary != nil {
		t.Errorf("result 4: trusted sender should skip summary, got %+v", got.Results[4])
	}
	if metrics.batches != 1 {
		t.Errorf("metrics: got %d batches, want 1", metrics.batches)
	}
}

func TestEmailText(t *testing.T) {
	tests := []struct {
		email Email
		want  string
	}{
		{Email{From: "a@b.com", Subject: "Hi", Body: "Body"}, "Sender: a@b.com\nSubject: Hi\n\nBody"},
		{Email{Body: "Body only"}, "Body only"},
		{Email{Subject: "Only subject"}, "Subject: Only subject\n"},
		{Email{}, ""},
	}
	for _, tt := range tests {
		if got := tt.email.Text(); got != tt.want {
			t.Errorf("Text(): got %q, want %q", got, tt.want)
		}
	}
}
