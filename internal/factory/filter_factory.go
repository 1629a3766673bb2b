package factory

import (
	"fmt"
	"os"

	"github.com/mikey/trustmail/internal/adapters/filter"
	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.AnalysisService
	mapper  *ingest.Mapper
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.AnalysisService, mapper *ingest.Mapper) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		mapper:  mapper,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")

	switch filterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.mapper, f.logger, filter.PostfixOptions{
			ListenAddr:     f.cfg.GetString("server.listen_address"),
			BlockHighRisk:  f.cfg.GetBool("server.block_high_risk"),
			ModifySubject:  f.cfg.GetBool("server.modify_subject"),
			SubjectPrefix:  f.cfg.GetString("server.subject_prefix"),
			ScoreHeader:    f.cfg.GetString("server.headers.score"),
			LevelHeader:    f.cfg.GetString("server.headers.level"),
			SummaryHeader:  f.cfg.GetString("server.headers.summary"),
			ForwardEnabled: f.cfg.GetBool("server.postfix.enabled"),
			ForwardAddr:    f.cfg.GetString("server.postfix.address"),
			ForwardPort:    f.cfg.GetInt("server.postfix.port"),
		}), nil
	case "http":
		httpCfg := f.cfg.GetHTTP()
		return filter.NewHTTPFilter(f.service, f.mapper, f.logger, filter.HTTPOptions{
			Address:        httpCfg.Address,
			APIKey:         httpCfg.APIKey,
			RateLimitRPS:   httpCfg.RateLimitRPS,
			RateLimitBurst: httpCfg.RateLimitBurst,
			MaxBodyBytes:   httpCfg.MaxBodyBytes,
			CORSOrigins:    httpCfg.CORSOrigins,
			TrustedProxies: httpCfg.TrustedProxies,
		}), nil
	case "cli":
		return filter.NewCliFilter(f.service, f.logger, os.Stdout, f.cfg.GetBool("cli.verbose"))
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
