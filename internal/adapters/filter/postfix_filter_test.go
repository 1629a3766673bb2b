package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/risk"
	"github.com/mikey/trustmail/internal/summary"
	"github.com/mikey/trustmail/internal/utils"
	"github.com/mikey/trustmail/internal/whitelist"
	"go.uber.org/zap"
)

const phishingMessage = "From: Security Team <alerts@secure-paypa1-verify.tk>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Account notice\r\n" +
	"X-Risk-Score: 0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"URGENT! Your account has been suspended. Click here immediately to verify your identity " +
	"and send your bank details to secure-paypa1-verify.tk\r\n"

const benignMessage = "From: Friend <friend@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Coffee\r\n" +
	"\r\n" +
	"Hello, let's meet for coffee tomorrow.\r\n"

func newTestService(trusted ...string) *core.AnalysisService {
	logger := zap.NewNop()
	var wl core.SenderWhitelist
	if len(trusted) > 0 {
		wl = whitelist.NewChecker(trusted, logger)
	}
	return core.NewAnalysisService(
		risk.NewEngine(risk.DefaultCatalog(), "US", logger),
		summary.NewSummarizer(logger),
		nil,
		wl,
		nil,
		logger,
		core.ServiceOptions{MaxInputBytes: 1 << 20, BatchConcurrency: 2},
	)
}

func newTestPostfixFilter(opts PostfixOptions, trusted ...string) *PostfixFilter {
	logger := zap.NewNop()
	opts.ScoreHeader = "X-Risk-Score"
	opts.LevelHeader = "X-Threat-Level"
	opts.SummaryHeader = "X-Risk-Summary"
	mapper := ingest.NewMapper(utils.NewTextProcessor(0, logger), logger)
	return NewPostfixFilter(newTestService(trusted...), mapper, logger, opts)
}

func headerSection(msg []byte) string {
	s := string(msg)
	if i := strings.Index(s, "\r\n\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func TestHandleMessageStampsHeaders(t *testing.T) {
	f := newTestPostfixFilter(PostfixOptions{})

	out, err := f.handleMessage(context.Background(), "alerts@secure-paypa1-verify.tk", []string{"victim@example.com"}, []byte(phishingMessage))
	if err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	headers := headerSection(out)
	if !strings.HasPrefix(headers, "X-Risk-Score: 100\r\n") {
		t.Errorf("score header not first: %q", headers)
	}
	if !strings.Contains(headers, "X-Threat-Level: high\r\n") {
		t.Errorf("missing level header: %q", headers)
	}
	if strings.Count(headers, "X-Risk-Score:") != 1 {
		t.Errorf("existing score header not replaced: %q", headers)
	}
	if !strings.Contains(headers, "Subject: Account notice\r\n") {
		t.Errorf("subject changed without modify_subject: %q", headers)
	}
	if !strings.HasSuffix(string(out), "send your bank details to secure-paypa1-verify.tk\r\n") {
		t.Errorf("body not preserved: %q", out)
	}
}

func TestHandleMessageBlocksHighRisk(t *testing.T) {
	f := newTestPostfixFilter(PostfixOptions{BlockHighRisk: true})

	_, err := f.handleMessage(context.Background(), "alerts@secure-paypa1-verify.tk", nil, []byte(phishingMessage))

	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("expected SMTP error, got %v", err)
	}
	if smtpErr.Code != 550 {
		t.Errorf("code: got %d, want 550", smtpErr.Code)
	}
}

func TestHandleMessageModifiesSubject(t *testing.T) {
	f := newTestPostfixFilter(PostfixOptions{ModifySubject: true})

	out, err := f.handleMessage(context.Background(), "", nil, []byte(phishingMessage))
	if err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	headers := headerSection(out)
	if !strings.Contains(headers, "Subject: [SUSPICIOUS] Account notice\r\n") {
		t.Errorf("subject not prefixed: %q", headers)
	}
	if strings.Count(headers, "Subject:") != 1 {
		t.Errorf("expected one subject header: %q", headers)
	}
}

func TestHandleMessagePassesBenignMail(t *testing.T) {
	f := newTestPostfixFilter(PostfixOptions{BlockHighRisk: true, ModifySubject: true})

	out, err := f.handleMessage(context.Background(), "friend@example.com", nil, []byte(benignMessage))
	if err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	headers := headerSection(out)
	if !strings.Contains(headers, "X-Threat-Level: low\r\n") {
		t.Errorf("expected low level: %q", headers)
	}
	if !strings.Contains(headers, "Subject: Coffee\r\n") {
		t.Errorf("benign subject modified: %q", headers)
	}
}

func TestHandleMessageTrustedSender(t *testing.T) {
	f := newTestPostfixFilter(PostfixOptions{BlockHighRisk: true}, "secure-paypa1-verify.tk")

	out, err := f.handleMessage(context.Background(), "", nil, []byte(phishingMessage))
	if err != nil {
		t.Fatalf("trusted sender rejected: %v", err)
	}
	if !strings.Contains(headerSection(out), "X-Risk-Score: 0\r\n") {
		t.Errorf("expected zero score for trusted sender: %q", headerSection(out))
	}
}

func TestRewriteMessage(t *testing.T) {
	raw := "Received: from a\r\n\tby b\r\n" +
		"X-Threat-Level: forged\r\n" +
		"Subject: Hello\r\n" +
		"\r\n" +
		"body\r\n"

	fields := []headerField{{"X-Threat-Level", "high"}}

	tests := []struct {
		name    string
		subject string
		prefix  string
		want    string
	}{
		{
			name: "headers only",
			want: "X-Threat-Level: high\r\nReceived: from a\r\n\tby b\r\nSubject: Hello\r\n\r\nbody\r\n",
		},
		{
			name:    "subject prefixed",
			subject: "Hello",
			prefix:  "[SUSPICIOUS] ",
			want:    "X-Threat-Level: high\r\nSubject: [SUSPICIOUS] Hello\r\nReceived: from a\r\n\tby b\r\n\r\nbody\r\n",
		},
		{
			name:    "prefix already present",
			subject: "[SUSPICIOUS] Hello",
			prefix:  "[SUSPICIOUS] ",
			want:    "X-Threat-Level: high\r\nReceived: from a\r\n\tby b\r\nSubject: Hello\r\n\r\nbody\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(rewriteMessage([]byte(raw), fields, tt.subject, tt.prefix))
			if got != tt.want {
				t.Errorf("got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestRewriteMessageLFLineEndings(t *testing.T) {
	raw := "Subject: Hi\n\nbody\n"

	got := string(rewriteMessage([]byte(raw), []headerField{{"X-Risk-Score", "5"}}, "", ""))
	want := "X-Risk-Score: 5\nSubject: Hi\n\nbody\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeHeaderValue(t *testing.T) {
	if got := encodeHeaderValue("two\r\n lines"); got != "two lines" {
		t.Errorf("ascii: got %q", got)
	}
	if got := encodeHeaderValue("café"); !strings.HasPrefix(got, "=?utf-8?q?") {
		t.Errorf("non-ascii not encoded: %q", got)
	}
}
