package factory

import (
	"fmt"

	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/risk"
	"github.com/mikey/trustmail/internal/summary"
	"go.uber.org/zap"
)

// EngineFactory creates the risk engine and the content summarizer
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEngine builds a risk engine from the scoring configuration
func (f *EngineFactory) CreateEngine() (*risk.Engine, error) {
	scoring := f.cfg.GetScoring()
	weights := risk.Weights{
		Domain:          scoring.DomainWeight,
		URL:             scoring.URLWeight,
		FinancialBonus:  scoring.FinancialBonus,
		HighThreshold:   scoring.HighThreshold,
		MediumThreshold: scoring.MediumThreshold,
	}

	if weights.Domain < 0 || weights.URL < 0 || weights.FinancialBonus < 0 {
		return nil, fmt.Errorf("scoring weights must not be negative")
	}
	if weights.MediumThreshold <= 0 || weights.HighThreshold <= weights.MediumThreshold || weights.HighThreshold > 100 {
		return nil, fmt.Errorf("invalid thresholds: need 0 < medium (%d) < high (%d) <= 100",
			weights.MediumThreshold, weights.HighThreshold)
	}

	catalog := risk.NewCatalog(weights)
	region := f.cfg.GetAnalysis().PhoneRegion

	f.logger.Info("Risk engine configured",
		zap.String("catalog_version", catalog.Version()),
		zap.Float64("domain_weight", weights.Domain),
		zap.Float64("url_weight", weights.URL),
		zap.Int("high_threshold", weights.HighThreshold),
		zap.Int("medium_threshold", weights.MediumThreshold),
		zap.String("phone_region", region))

	return risk.NewEngine(catalog, region, f.logger), nil
}

// CreateSummarizer builds the content summarizer
func (f *EngineFactory) CreateSummarizer() *summary.Summarizer {
	return summary.NewSummarizer(f.logger)
}
