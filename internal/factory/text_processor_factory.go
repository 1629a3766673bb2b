package factory

import (
	"github.com/mikey/trustmail/internal/config"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/utils"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and message mappers
type TextProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor bounded by analysis.max_body_bytes
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.cfg.GetAnalysis().MaxBodyBytes, f.logger)
}

// CreateMapper creates a message mapper on top of a text processor
func (f *TextProcessorFactory) CreateMapper(tp *utils.TextProcessor) *ingest.Mapper {
	return ingest.NewMapper(tp, f.logger)
}
