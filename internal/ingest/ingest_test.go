package ingest

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/utils"
	"go.uber.org/zap"
)

func newTestMapper() *Mapper {
	m := NewMapper(utils.NewTextProcessor(0, zap.NewNop()), zap.NewNop())
	m.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return m
}

const plainMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.org, carol@example.net\r\n" +
	"Subject: Quarterly numbers\r\n" +
	"Date: Wed, 01 May 2024 09:00:00 +0000\r\n" +
	"Message-Id: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please review the attached figures before Friday.\r\n"

func TestParseMessagePlain(t *testing.T) {
	m := newTestMapper()

	email, err := m.ParseMessage(strings.NewReader(plainMessage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.From != "Alice <alice@example.com>" {
		t.Errorf("from: got %q", email.From)
	}
	if email.Subject != "Quarterly numbers" {
		t.Errorf("subject: got %q", email.Subject)
	}
	wantTo := []string{"bob@example.org", "carol@example.net"}
	if !reflect.DeepEqual(email.To, wantTo) {
		t.Errorf("to: got %v, want %v", email.To, wantTo)
	}
	if email.MessageID != "<abc123@example.com>" {
		t.Errorf("message id: got %q", email.MessageID)
	}
	if !strings.Contains(email.Body, "Please review the attached figures") {
		t.Errorf("body: got %q", email.Body)
	}
	if email.Date == "" {
		t.Error("expected date header to be kept")
	}
}

func TestParseMessageHTMLOnly(t *testing.T) {
	m := newTestMapper()

	msg := "From: promo@shop.tk\r\n" +
		"Subject: Deal\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Claim your <b>prize</b> now</p></body></html>\r\n"

	email, err := m.ParseMessage(strings.NewReader(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(email.Body, "prize") {
		t.Errorf("body: got %q", email.Body)
	}
	if strings.Contains(email.Body, "<b>") {
		t.Errorf("body still contains markup: %q", email.Body)
	}
	if email.Date != "2024-05-01T09:30:00Z" {
		t.Errorf("date: got %q, want default", email.Date)
	}
}

func TestFromPayloadFallbacks(t *testing.T) {
	m := newTestMapper()

	email, err := m.FromPayload([]byte(`{
		"sender": "alerts@bank.example",
		"recipient": "me@example.com",
		"subject": "Notice",
		"html": "<p>Your <i>statement</i> is ready</p>",
		"id": "msg-7"
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.From != "alerts@bank.example" {
		t.Errorf("from: got %q", email.From)
	}
	if !reflect.DeepEqual(email.To, []string{"me@example.com"}) {
		t.Errorf("to: got %v", email.To)
	}
	if !strings.Contains(email.Body, "statement") || strings.Contains(email.Body, "<i>") {
		t.Errorf("body: got %q", email.Body)
	}
	if email.MessageID != "msg-7" || email.OriginalID() != "msg-7" {
		t.Errorf("message id: got %q", email.MessageID)
	}
	if email.Date != "2024-05-01T09:30:00Z" {
		t.Errorf("date: got %q", email.Date)
	}
}

func TestFromPayloadPrefersPrimaryFields(t *testing.T) {
	m := newTestMapper()

	email, err := m.FromPayload([]byte(`{
		"from": "a@example.com", "sender": "b@example.com",
		"to": ["x@example.com", "y@example.com"],
		"text": "plain body", "body": "other body",
		"uid": "42", "messageId": "<m@example.com>",
		"date": "2024-01-01"
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.From != "a@example.com" || email.Body != "plain body" || email.Date != "2024-01-01" {
		t.Errorf("email: got %+v", email)
	}
	if !reflect.DeepEqual(email.To, []string{"x@example.com", "y@example.com"}) {
		t.Errorf("to: got %v", email.To)
	}
	if email.OriginalID() != "42" {
		t.Errorf("original id: got %q, want uid", email.OriginalID())
	}
}

func TestFromPayloadRejectsNonObject(t *testing.T) {
	m := newTestMapper()

	for _, raw := range []string{`"just a string"`, `42`, `null`, `[1,2]`} {
		if _, err := m.FromPayload([]byte(raw)); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("payload %s: got %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestParseBatch(t *testing.T) {
	m := newTestMapper()

	items, err := m.ParseBatch([]byte(`[{"from":"a@example.com","text":"hi"}, "oops", {"body":"second"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items: got %d, want 3", len(items))
	}
	if items[0].Err != nil || items[0].Email.From != "a@example.com" {
		t.Errorf("item 0: got %+v", items[0])
	}
	if items[1].Err == nil {
		t.Error("item 1: expected error for non-object")
	}
	if items[2].Err != nil || items[2].Email.Body != "second" {
		t.Errorf("item 2: got %+v", items[2])
	}

	single, err := m.ParseBatch([]byte(`{"text":"only one"}`))
	if err != nil || len(single) != 1 {
		t.Fatalf("single: got %v items, err %v", len(single), err)
	}

	for _, bad := range []string{"", "   ", "{not json", "[1,"} {
		if _, err := m.ParseBatch([]byte(bad)); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("body %q: got %v, want ErrInvalidInput", bad, err)
		}
	}
}
