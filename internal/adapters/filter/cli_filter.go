package filter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/utils"
	"go.uber.org/zap"
)

// CliFilter analyses emails and prints a human readable report
type CliFilter struct {
	service *core.AnalysisService
	logger  *zap.Logger
	out     io.Writer
	verbose bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(service *core.AnalysisService, logger *zap.Logger, out io.Writer, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
	}, nil
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisReport, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := email.Body
		if len(preview) > 500 {
			preview = utils.TruncateRunes(preview, 500) + "..."
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", preview)
	}

	startTime := time.Now()
	report, err := f.service.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}

	PrintReport(f.out, report, f.verbose)
	fmt.Fprintf(f.out, "Processing time: %v\n", time.Since(startTime))

	return report, nil
}

// PrintReport writes an analysis report in plain text
func PrintReport(w io.Writer, report *core.AnalysisReport, verbose bool) {
	a := report.Analysis

	fmt.Fprintf(w, "\n=== Results ===\n")
	fmt.Fprintf(w, "Risk score: %d/100\n", a.RiskScore)
	fmt.Fprintf(w, "Threat level: %s\n", a.ThreatLevel)
	if report.Trusted {
		fmt.Fprintf(w, "Trusted sender: yes\n")
	}
	fmt.Fprintf(w, "Summary: %s\n", a.Summary)

	printList(w, "Detected threats", a.DetectedThreats)
	printList(w, "Domain analysis", a.DomainAnalysis)
	printList(w, "URL analysis", a.URLAnalysis)

	if len(a.Lookalikes) > 0 {
		fmt.Fprintf(w, "\nLook-alike domains:\n")
		for _, l := range a.Lookalikes {
			fmt.Fprintf(w, "  - %s resembles %s (distance %d)\n", l.Domain, l.Brand, l.Distance)
		}
	}

	if verbose {
		printList(w, "Email addresses", a.EmailAddresses)
		printList(w, "Domains", a.Domains)
		printList(w, "URLs", a.URLs)
		printList(w, "Phone numbers", a.PhoneNumbers)
		if len(a.SuspiciousSegments) > 0 {
			fmt.Fprintf(w, "\nEvidence:\n")
			for _, e := range a.SuspiciousSegments {
				fmt.Fprintf(w, "  - %q: %s\n", e.Text, e.Reason)
			}
		}
	}

	printList(w, "Recommendations", a.Recommendations)
}

// PrintSummary writes a content summary in plain text
func PrintSummary(w io.Writer, s *core.SummaryResult) {
	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "%s\n", s.Summary)
	fmt.Fprintf(w, "Category: %s\n", s.Category)
	fmt.Fprintf(w, "Urgency: %s\n", s.Urgency)
	fmt.Fprintf(w, "Sentiment: %s\n", s.Sentiment)
	fmt.Fprintf(w, "Word count: %d\n", s.WordCount)
	printList(w, "Key points", s.KeyPoints)
	printList(w, "Action items", s.ActionItems)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
