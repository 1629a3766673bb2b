package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/ingest"
	"go.uber.org/zap"
)

// PostfixOptions configures the Postfix content filter
type PostfixOptions struct {
	ListenAddr     string
	BlockHighRisk  bool
	ModifySubject  bool
	SubjectPrefix  string
	ScoreHeader    string
	LevelHeader    string
	SummaryHeader  string
	ForwardEnabled bool
	ForwardAddr    string
	ForwardPort    int
}

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	service *core.AnalysisService
	mapper  *ingest.Mapper
	logger  *zap.Logger
	opts    PostfixOptions
	server  *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service *core.AnalysisService, mapper *ingest.Mapper, logger *zap.Logger, opts PostfixOptions) *PostfixFilter {
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = "[SUSPICIOUS] "
	}

	return &PostfixFilter{
		service: service,
		mapper:  mapper,
		logger:  logger,
		opts:    opts,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.opts.ListenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyses an email without touching the mail flow
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisReport, error) {
	return f.service.AnalyzeEmail(ctx, email)
}

// riskHeaders renders the headers stamped onto a scored message
func (f *PostfixFilter) riskHeaders(result *core.AnalysisResult) []headerField {
	return []headerField{
		{f.opts.ScoreHeader, strconv.Itoa(result.RiskScore)},
		{f.opts.LevelHeader, string(result.ThreatLevel)},
		{f.opts.SummaryHeader, encodeHeaderValue(result.Summary)},
	}
}

// handleMessage analyses a raw message and returns the bytes to forward.
// A non-nil SMTP error means the message is rejected.
func (f *PostfixFilter) handleMessage(ctx context.Context, sender string, recipients []string, raw []byte) ([]byte, error) {
	email, err := f.mapper.ParseMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if email.From == "" {
		email.From = sender
	}
	if len(email.To) == 0 {
		email.To = recipients
	}

	report, err := f.service.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(err),
			zap.String("sender", email.From))

		errHeader := []headerField{{"X-Risk-Analysis-Error", encodeHeaderValue(err.Error())}}
		return rewriteMessage(raw, errHeader, "", ""), nil
	}

	result := report.Analysis
	highRisk := result.ThreatLevel == core.ThreatLevelHigh

	if highRisk && f.opts.BlockHighRisk {
		f.logger.Info("Rejecting high risk email",
			zap.String("from", email.From),
			zap.Int("score", result.RiskScore),
			zap.String("summary", result.Summary))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Message rejected as high risk (score %d)", result.RiskScore),
		}
	}

	prefix := ""
	if highRisk && f.opts.ModifySubject {
		prefix = f.opts.SubjectPrefix
	}

	f.logger.Info("Processed email",
		zap.String("from", email.From),
		zap.Int("score", result.RiskScore),
		zap.String("threat_level", string(result.ThreatLevel)),
		zap.Bool("trusted", report.Trusted),
		zap.Bool("cached", report.Cached))

	return rewriteMessage(raw, f.riskHeaders(result), email.Subject, prefix), nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.ForwardAddr, strconv.Itoa(f.opts.ForwardPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// headerField is a single header name and value
type headerField struct {
	name  string
	value string
}

// rewriteMessage prepends fields to the raw message, dropping any existing
// header with the same name. When prefix is set and subject does not already
// carry it, the Subject header is replaced. The body is passed through
// untouched so MIME parts survive.
func rewriteMessage(raw []byte, fields []headerField, subject, prefix string) []byte {
	eol := "\r\n"
	sep := bytes.Index(raw, []byte("\r\n\r\n"))
	headerEnd, bodyStart := sep+2, sep+4
	if sep == -1 {
		eol = "\n"
		sep = bytes.Index(raw, []byte("\n\n"))
		headerEnd, bodyStart = sep+1, sep+2
	}

	var headerBlock, body []byte
	if sep == -1 {
		headerBlock = raw
	} else {
		headerBlock = raw[:headerEnd]
		body = raw[bodyStart:]
	}

	drop := make(map[string]bool, len(fields)+1)
	for _, f := range fields {
		drop[strings.ToLower(f.name)] = true
	}

	replaceSubject := prefix != "" && !strings.HasPrefix(subject, prefix)
	if replaceSubject {
		drop["subject"] = true
	}

	var out bytes.Buffer
	for _, f := range fields {
		fmt.Fprintf(&out, "%s: %s%s", f.name, f.value, eol)
	}
	if replaceSubject {
		fmt.Fprintf(&out, "Subject: %s%s", encodeHeaderValue(prefix+subject), eol)
	}

	for _, field := range splitHeaderFields(headerBlock) {
		name, _, _ := strings.Cut(field, ":")
		if drop[strings.ToLower(strings.TrimSpace(name))] {
			continue
		}
		out.WriteString(field)
	}

	out.WriteString(eol)
	out.Write(body)
	return out.Bytes()
}

// splitHeaderFields splits a raw header block into fields, keeping folded
// continuation lines and line endings attached to their field
func splitHeaderFields(block []byte) []string {
	var fields []string
	var current strings.Builder

	for len(block) > 0 {
		line := block
		if i := bytes.IndexByte(block, '\n'); i >= 0 {
			line = block[:i+1]
		}
		block = block[len(line):]

		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && current.Len() > 0 {
			current.Write(line)
			continue
		}
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
		current.Write(line)
	}
	if current.Len() > 0 {
		fields = append(fields, current.String())
	}

	return fields
}

// encodeHeaderValue flattens a value to a single line and MIME encodes it
// when it is not plain ASCII
func encodeHeaderValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return mime.QEncoding.Encode("utf-8", v)
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// AuthPlain handles PLAIN authentication (not needed for our filter)
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := s.filter.handleMessage(ctx, s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if !s.filter.opts.ForwardEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, message was analysed but not reinjected")
		return nil
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, out); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}

	return nil
}

// Logout handles SMTP logout (not needed for our filter)
func (s *smtpSession) Logout() error {
	return nil
}
