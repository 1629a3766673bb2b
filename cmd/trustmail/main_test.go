package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/trustmail/internal/core"
)

const phishingText = "URGENT! Your account has been suspended. Click here immediately to verify your identity and send your bank details to secure-paypa1-verify.tk"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeStdinJSON(t *testing.T) {
	out, err := run(t, phishingText, "analyze", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var report core.AnalysisReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Analysis.ThreatLevel != core.ThreatLevelHigh {
		t.Errorf("threat level: got %q, want high", report.Analysis.ThreatLevel)
	}
}

func TestAnalyzeTextReport(t *testing.T) {
	out, err := run(t, "Hello, let's meet for coffee tomorrow.", "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Threat level: low") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestAnalyzeEmlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message.eml")
	msg := "From: Security <alerts@secure-paypa1-verify.tk>\r\n" +
		"Subject: Notice\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		phishingText + "\r\n"
	if err := os.WriteFile(path, []byte(msg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Subject: Notice") || !strings.Contains(out, "Threat level: high") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	if _, err := run(t, "   ", "analyze"); err == nil {
		t.Error("expected an error for blank input")
	}
}

func TestSummarize(t *testing.T) {
	out, err := run(t, "Please send the slides before the meeting on Monday.", "summarize")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out, "Category: business") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	body := `[{"from": "friend@example.com", "text": "See you at lunch."}, 7]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "batch", path)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	var result core.BatchResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Processed != 2 || result.Successful != 1 || result.Errors != 1 {
		t.Errorf("counts: got %+v", result)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "trustmail dev") {
		t.Errorf("unexpected output: %q", out)
	}
}
