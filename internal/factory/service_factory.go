package factory

import (
	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/metrics"
	"github.com/mikey/trustmail/internal/whitelist"
	"go.uber.org/zap"
)

// ServiceFactory creates the analysis service and its collaborators
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateWhitelist builds the trusted sender checker
func (f *ServiceFactory) CreateWhitelist() *whitelist.Checker {
	domains := f.cfg.GetAnalysis().TrustedDomains
	if len(domains) > 0 {
		f.logger.Info("Loaded trusted sender domains", zap.Strings("domains", domains))
	}
	return whitelist.NewChecker(domains, f.logger)
}

// CreateMetricsRecorder builds the prometheus backed recorder
func (f *ServiceFactory) CreateMetricsRecorder() *metrics.Recorder {
	return metrics.NewRecorder()
}

// ServiceOptions derives the service options from configuration
func (f *ServiceFactory) ServiceOptions() (core.ServiceOptions, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	analysis := f.cfg.GetAnalysis()

	return core.ServiceOptions{
		CacheEnabled:     cacheCfg.Enabled,
		CacheTTL:         cacheCfg.TTL,
		MaxInputBytes:    analysis.MaxInputBytes,
		BatchConcurrency: analysis.BatchConcurrency,
	}, nil
}

// CreateService wires the analysis service. cache may be nil.
func (f *ServiceFactory) CreateService(
	engine core.RiskEngine,
	summarizer core.ContentSummarizer,
	cache core.CacheRepository,
	wl core.SenderWhitelist,
	recorder core.MetricsRecorder,
) (*core.AnalysisService, error) {
	opts, err := f.ServiceOptions()
	if err != nil {
		return nil, err
	}
	return core.NewAnalysisService(engine, summarizer, cache, wl, recorder, f.logger, opts), nil
}
