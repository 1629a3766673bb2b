package ports

import (
	"context"

	"github.com/mikey/trustmail/internal/core"
)

// EmailFilter defines the interface for an inbound email front end
type EmailFilter interface {
	// ProcessEmail analyses an email and returns the report
	ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisReport, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
