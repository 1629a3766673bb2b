package di

import (
	"io"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/trustmail/internal/adapters/filter"
	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/factory"
	"github.com/mikey/trustmail/internal/logging"
)

// CLIOptions contains the global options of the CLI application
type CLIOptions struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
	Out        io.Writer
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(opts CLIOptions) (*dig.Container, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	container := dig.New()

	// Register options
	if err := container.Provide(func() CLIOptions { return opts }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(opts CLIOptions) (*zap.Logger, error) {
		return logging.InitConsoleLogger(opts.Verbose, opts.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(opts CLIOptions, logger *zap.Logger) (*config.Config, error) {
		if opts.ConfigFile != "" {
			cfg, err := config.Load(opts.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}
		return createCLIConfig(opts), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register analysis service with no cache and no metrics
	if err := container.Provide(func(
		f *factory.ServiceFactory,
		engine core.RiskEngine,
		summarizer core.ContentSummarizer,
		wl core.SenderWhitelist,
	) (*core.AnalysisService, error) {
		return f.CreateService(engine, summarizer, nil, wl, nil)
	}); err != nil {
		return nil, err
	}

	// Register the report printer
	if err := container.Provide(func(opts CLIOptions, service *core.AnalysisService, logger *zap.Logger) (*filter.CliFilter, error) {
		return filter.NewCliFilter(service, logger, opts.Out, opts.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createCLIConfig creates a default configuration for one-shot CLI runs
func createCLIConfig(opts CLIOptions) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", opts.Verbose)
	v.Set("cache.enabled", false)

	return config.NewFromViper(v)
}
