package di

import (
	"go.uber.org/dig"

	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/factory"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/logging"
	"github.com/mikey/trustmail/internal/ports"
	"github.com/mikey/trustmail/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the long running filter daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register metrics recorder
	if err := container.Provide(func(f *factory.ServiceFactory) core.MetricsRecorder {
		return f.CreateMetricsRecorder()
	}); err != nil {
		return nil, err
	}

	// Register analysis service
	if err := container.Provide(func(
		f *factory.ServiceFactory,
		engine core.RiskEngine,
		summarizer core.ContentSummarizer,
		cache core.CacheRepository,
		wl core.SenderWhitelist,
		recorder core.MetricsRecorder,
	) (*core.AnalysisService, error) {
		return f.CreateService(engine, summarizer, cache, wl, recorder)
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the pieces shared by the daemon and the CLI:
// engine, summarizer, whitelist, text processor and message mapper
func provideCommon(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewServiceFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register risk engine and summarizer
	if err := container.Provide(func(f *factory.EngineFactory) (core.RiskEngine, error) {
		return f.CreateEngine()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory) core.ContentSummarizer {
		return f.CreateSummarizer()
	}); err != nil {
		return err
	}

	// Register trusted sender whitelist
	if err := container.Provide(func(f *factory.ServiceFactory) core.SenderWhitelist {
		return f.CreateWhitelist()
	}); err != nil {
		return err
	}

	// Register text processor and mapper
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory, tp *utils.TextProcessor) *ingest.Mapper {
		return f.CreateMapper(tp)
	}); err != nil {
		return err
	}

	return nil
}
