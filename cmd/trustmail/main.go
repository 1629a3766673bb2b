package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/trustmail/internal/adapters/filter"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/di"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/risk"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

// version is overridden via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	verbose    bool
	jsonLog    bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "trustmail",
		Short: "Score emails for fraud and phishing risk",
		Long: `trustmail scores email text for likely fraud or phishing intent and
summarises its content.

Input is read from a file or, when no file is given, from stdin:

  trustmail analyze suspicious.eml
  cat message.txt | trustmail analyze --json`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "Path to config file (defaults are used when empty)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose logging and detailed reports")
	root.PersistentFlags().BoolVar(&g.jsonLog, "json-log", false, "Output logs in JSON format")

	root.AddCommand(newAnalyzeCmd(&g))
	root.AddCommand(newSummarizeCmd(&g))
	root.AddCommand(newBatchCmd(&g))
	root.AddCommand(newVersionCmd())

	return root
}

// buildContainer wires the CLI container with output bound to the command
func buildContainer(cmd *cobra.Command, g *globalFlags) (*dig.Container, error) {
	container, err := di.BuildCLIContainer(di.CLIOptions{
		ConfigFile: g.configFile,
		Verbose:    g.verbose,
		JSONLog:    g.jsonLog,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency container: %w", err)
	}
	return container, nil
}

// readInput reads the named file, or stdin when no file is given
func readInput(cmd *cobra.Command, args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, "", nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("failed to read input file: %w", err)
	}
	return data, args[0], nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var (
		asMessage bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Compute the risk report for an email",
		Long: `Analyze scores an email and prints the risk report.

Files ending in .eml, or any input with --eml, are parsed as RFC 5322
messages: the text body (or HTML converted to text) is analysed together
with the sender and subject, and trusted sender domains are honoured.
Anything else is analysed as raw text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, name, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if strings.EqualFold(filepath.Ext(name), ".eml") {
				asMessage = true
			}

			container, err := buildContainer(cmd, g)
			if err != nil {
				return err
			}

			return container.Invoke(func(service *core.AnalysisService, mapper *ingest.Mapper, cli *filter.CliFilter) error {
				ctx := context.Background()
				out := cmd.OutOrStdout()

				if asMessage {
					email, err := mapper.ParseMessage(bytes.NewReader(data))
					if err != nil {
						return err
					}
					if !asJSON {
						_, err := cli.ProcessEmail(ctx, email)
						return err
					}
					report, err := service.AnalyzeEmail(ctx, email)
					if err != nil {
						return err
					}
					return writeJSON(out, report)
				}

				report, err := service.AnalyzeText(ctx, string(data))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, report)
				}
				filter.PrintReport(out, report, g.verbose)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asMessage, "eml", false, "Parse the input as an RFC 5322 message")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func newSummarizeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summarize [file]",
		Short: "Summarise the content of an email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			container, err := buildContainer(cmd, g)
			if err != nil {
				return err
			}

			return container.Invoke(func(service *core.AnalysisService) error {
				report, err := service.SummarizeText(context.Background(), string(data))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				filter.PrintSummary(cmd.OutOrStdout(), report.Summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func newBatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.json>",
		Short: "Analyse and summarise a batch of webhook shaped emails",
		Long: `Batch reads a JSON object or array of objects in the webhook shape
(from|sender, to|recipient, subject, text|html|body, messageId|id, uid, date)
and prints the batch result as JSON. A failing item never aborts the rest.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			container, err := buildContainer(cmd, g)
			if err != nil {
				return err
			}

			return container.Invoke(func(service *core.AnalysisService, mapper *ingest.Mapper) error {
				items, err := mapper.ParseBatch(data)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), service.ProcessBatch(context.Background(), items))
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trustmail %s (pattern catalog %s)\n", version, risk.CatalogVersion)
		},
	}
}
