package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/utils"
	"go.uber.org/zap"
)

// Mapper converts inbound message shapes into core.Email values
type Mapper struct {
	text   *utils.TextProcessor
	logger *zap.Logger
	now    func() time.Time
}

// NewMapper creates a new mapper. Bodies are sanitized, NFC normalized and
// truncated by text.
func NewMapper(text *utils.TextProcessor, logger *zap.Logger) *Mapper {
	return &Mapper{
		text:   text,
		logger: logger,
		now:    time.Now,
	}
}

// ParseMessage reads an RFC 5322 message, including MIME multipart bodies.
// The plain text part is preferred; HTML-only messages are converted to text.
func (m *Mapper) ParseMessage(r io.Reader) (*core.Email, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	for _, perr := range env.Errors {
		m.logger.Debug("MIME parse warning", zap.String("error", perr.Error()))
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = m.htmlToText(env.HTML)
	}

	headers := make(map[string][]string)
	for _, key := range env.GetHeaderKeys() {
		headers[key] = env.GetHeaderValues(key)
	}

	email := &core.Email{
		From:      env.GetHeader("From"),
		To:        recipients(env),
		Subject:   m.text.Normalize(env.GetHeader("Subject")),
		Body:      m.text.ProcessText(body),
		Date:      env.GetHeader("Date"),
		MessageID: env.GetHeader("Message-Id"),
		Headers:   headers,
	}
	if email.Date == "" {
		email.Date = m.now().UTC().Format(time.RFC3339)
	}

	return email, nil
}

// FromPayload maps a webhook JSON object into an Email. Missing fields fall
// back to alternative names: from|sender, to|recipient, text|html|body and
// messageId|id. A missing date defaults to now.
func (m *Mapper) FromPayload(raw json.RawMessage) (*core.Email, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: email must be a JSON object", core.ErrInvalidInput)
	}

	body := stringField(obj, "text")
	if body == "" {
		if html := stringField(obj, "html"); html != "" {
			body = m.htmlToText(html)
		}
	}
	if body == "" {
		body = stringField(obj, "body")
	}

	email := &core.Email{
		From:      firstString(obj, "from", "sender"),
		To:        listField(obj, "to", "recipient"),
		Subject:   m.text.Normalize(stringField(obj, "subject")),
		Body:      m.text.ProcessText(body),
		Date:      stringField(obj, "date"),
		MessageID: firstString(obj, "messageId", "id"),
		UID:       stringField(obj, "uid"),
	}
	if email.Date == "" {
		email.Date = m.now().UTC().Format(time.RFC3339)
	}

	return email, nil
}

// ParseBatch accepts a single JSON object or an array of them. Items that
// cannot be mapped are returned with their error so siblings still run.
func (m *Mapper) ParseBatch(data []byte) ([]core.BatchItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", core.ErrInvalidInput)
	}

	var raws []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("%w: malformed JSON array: %v", core.ErrInvalidInput, err)
		}
	} else {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("%w: malformed JSON body", core.ErrInvalidInput)
		}
		raws = []json.RawMessage{trimmed}
	}

	items := make([]core.BatchItem, len(raws))
	for i, raw := range raws {
		email, err := m.FromPayload(raw)
		items[i] = core.BatchItem{Email: email, Err: err}
	}
	return items, nil
}

func (m *Mapper) htmlToText(html string) string {
	text, err := html2text.FromString(html)
	if err != nil {
		m.logger.Warn("Failed to convert HTML body, using raw markup", zap.Error(err))
		return html
	}
	return text
}

func recipients(env *enmime.Envelope) []string {
	list, err := env.AddressList("To")
	if err != nil || len(list) == 0 {
		raw := env.GetHeader("To")
		if raw == "" {
			return nil
		}
		return splitList(raw)
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(obj, key); v != "" {
			return v
		}
	}
	return ""
}

func listField(obj map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return splitList(v)
			}
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
