package factory

import (
	"path/filepath"
	"testing"

	"github.com/mikey/trustmail/internal/adapters/cache"
	"github.com/mikey/trustmail/internal/adapters/filter"
	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/core"
	"go.uber.org/zap"
)

func testConfig(overrides map[string]any) *config.Config {
	v := config.NewEmptyViper()
	for k, val := range overrides {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func TestCreateEngineDefaults(t *testing.T) {
	f := NewEngineFactory(testConfig(nil), zap.NewNop())

	engine, err := f.CreateEngine()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	w := engine.Catalog().Weights()
	if w.Domain != 0.6 || w.URL != 0.4 || w.HighThreshold != 70 || w.MediumThreshold != 40 {
		t.Errorf("weights: got %+v", w)
	}
}

func TestCreateEngineRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
	}{
		{"high below medium", map[string]any{"scoring.high_threshold": 30}},
		{"high above 100", map[string]any{"scoring.high_threshold": 150}},
		{"negative weight", map[string]any{"scoring.domain_weight": -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewEngineFactory(testConfig(tt.overrides), zap.NewNop())
			if _, err := f.CreateEngine(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCreateCacheRepository(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		f := NewCacheFactory(testConfig(map[string]any{"cache.cleanup_frequency": "0s"}), zap.NewNop())
		repo, err := f.CreateCacheRepository()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		mc, ok := repo.(*cache.MemoryCache)
		if !ok {
			t.Fatalf("type: got %T, want *cache.MemoryCache", repo)
		}
		mc.Stop()
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "cache.db")
		f := NewCacheFactory(testConfig(map[string]any{
			"cache.type":        "sqlite",
			"cache.sqlite_path": path,
		}), zap.NewNop())
		repo, err := f.CreateCacheRepository()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		repo.(*cache.SQLiteCache).Stop()
	})

	t.Run("disabled", func(t *testing.T) {
		f := NewCacheFactory(testConfig(map[string]any{"cache.enabled": false}), zap.NewNop())
		repo, err := f.CreateCacheRepository()
		if err != nil || repo != nil {
			t.Errorf("got %v, %v; want nil, nil", repo, err)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		f := NewCacheFactory(testConfig(map[string]any{"cache.type": "etcd"}), zap.NewNop())
		if _, err := f.CreateCacheRepository(); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestCreateEmailFilter(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		filterType string
		check      func(any) bool
	}{
		{"http", func(v any) bool { _, ok := v.(*filter.HTTPFilter); return ok }},
		{"postfix", func(v any) bool { _, ok := v.(*filter.PostfixFilter); return ok }},
		{"cli", func(v any) bool { _, ok := v.(*filter.CliFilter); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.filterType, func(t *testing.T) {
			cfg := testConfig(map[string]any{"server.filter_type": tt.filterType})
			tp := NewTextProcessorFactory(cfg, logger)
			service := core.NewAnalysisService(nil, nil, nil, nil, nil, logger, core.ServiceOptions{})

			f := NewFilterFactory(cfg, logger, service, tp.CreateMapper(tp.CreateTextProcessor()))
			got, err := f.CreateEmailFilter()
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("type: got %T", got)
			}
		})
	}

	cfg := testConfig(map[string]any{"server.filter_type": "milter"})
	f := NewFilterFactory(cfg, logger, nil, nil)
	if _, err := f.CreateEmailFilter(); err == nil {
		t.Error("expected an error for an unknown filter type")
	}
}
