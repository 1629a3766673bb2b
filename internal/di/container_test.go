package di

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mikey/trustmail/internal/adapters/filter"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/ingest"
)

func TestBuildCLIContainer(t *testing.T) {
	var out bytes.Buffer
	container, err := BuildCLIContainer(CLIOptions{Out: &out})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	err = container.Invoke(func(service *core.AnalysisService, mapper *ingest.Mapper, cli *filter.CliFilter) error {
		email, err := mapper.FromPayload([]byte(`{"from": "friend@example.com", "subject": "Hi", "text": "Lunch tomorrow?"}`))
		if err != nil {
			return err
		}
		_, err = cli.ProcessEmail(context.Background(), email)
		return err
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if !strings.Contains(out.String(), "Threat level: low") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestBuildCLIContainerMissingConfigFile(t *testing.T) {
	container, err := BuildCLIContainer(CLIOptions{ConfigFile: "/nonexistent/trustmail.yaml", Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	err = container.Invoke(func(*core.AnalysisService) {})
	if err == nil {
		t.Error("expected an error for a missing config file")
	}
}
