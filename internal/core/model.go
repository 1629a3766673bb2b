package core

import (
	"strings"
	"time"
)

// ThreatLevel is the coarse classification derived from a risk score
type ThreatLevel string

const (
	ThreatLevelLow    ThreatLevel = "low"
	ThreatLevelMedium ThreatLevel = "medium"
	ThreatLevelHigh   ThreatLevel = "high"
)

// Email represents an inbound message mapped from any supported source
type Email struct {
	From      string
	To        []string
	Subject   string
	Body      string
	Date      string
	MessageID string
	UID       string
	Headers   map[string][]string
}

// Text renders the email as the raw text handed to the analysers.
// Empty parts are omitted.
func (e *Email) Text() string {
	var b strings.Builder
	if e.From != "" {
		b.WriteString("Sender: ")
		b.WriteString(e.From)
		b.WriteString("\n")
	}
	if e.Subject != "" {
		b.WriteString("Subject: ")
		b.WriteString(e.Subject)
		b.WriteString("\n")
	}
	if b.Len() > 0 && e.Body != "" {
		b.WriteString("\n")
	}
	b.WriteString(e.Body)
	return b.String()
}

// OriginalID returns the identifier the upstream system knows the email by
func (e *Email) OriginalID() string {
	if e.UID != "" {
		return e.UID
	}
	return e.MessageID
}

// Evidence is a matched substring and the reason it was flagged
type Evidence struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Lookalike records a domain that sits within a small edit distance of a
// legitimate brand domain
type Lookalike struct {
	Domain   string `json:"domain"`
	Brand    string `json:"brand"`
	Distance int    `json:"distance"`
}

// AnalysisResult is the deterministic output of the risk engine
type AnalysisResult struct {
	RiskScore          int         `json:"riskScore"`
	ThreatLevel        ThreatLevel `json:"threatLevel"`
	DetectedThreats    []string    `json:"detectedThreats"`
	DomainAnalysis     []string    `json:"domainAnalysis"`
	URLAnalysis        []string    `json:"urlAnalysis"`
	EmailAddresses     []string    `json:"emailAddresses"`
	Domains            []string    `json:"domains"`
	URLs               []string    `json:"urls"`
	PhoneNumbers       []string    `json:"phoneNumbers"`
	Lookalikes         []Lookalike `json:"lookalikes"`
	SuspiciousSegments []Evidence  `json:"suspiciousSegments"`
	Recommendations    []string    `json:"recommendations"`
	Summary            string      `json:"summary"`
	CatalogVersion     string      `json:"catalogVersion"`
}

// Sentiment of a message
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Urgency of a message
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Category of a message
type Category string

const (
	CategoryBusiness     Category = "business"
	CategoryPersonal     Category = "personal"
	CategoryMarketing    Category = "marketing"
	CategoryNotification Category = "notification"
	CategoryGeneral      Category = "general"
)

// SummaryResult is the output of the content summarizer
type SummaryResult struct {
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"keyPoints"`
	ActionItems []string  `json:"actionItems"`
	Sentiment   Sentiment `json:"sentiment"`
	Urgency     Urgency   `json:"urgency"`
	Category    Category  `json:"category"`
	WordCount   int       `json:"wordCount"`
}

// AnalysisReport wraps an analysis with per-request metadata
type AnalysisReport struct {
	ProcessingID string          `json:"processingId"`
	AnalyzedAt   time.Time       `json:"analyzedAt"`
	Cached       bool            `json:"cached"`
	Trusted      bool            `json:"trusted"`
	Analysis     *AnalysisResult `json:"analysis"`
}

// SummaryReport wraps a summary with per-request metadata
type SummaryReport struct {
	ProcessingID string         `json:"processingId"`
	AnalyzedAt   time.Time      `json:"analyzedAt"`
	Summary      *SummaryResult `json:"summary"`
}

// BatchItemResult is the outcome for a single email of a batch
type BatchItemResult struct {
	Success    bool            `json:"success"`
	OriginalID string          `json:"originalId,omitempty"`
	Subject    string          `json:"subject,omitempty"`
	From       string          `json:"from,omitempty"`
	Error      string          `json:"error,omitempty"`
	Analysis   *AnalysisResult `json:"analysis,omitempty"`
	Summary    *SummaryResult  `json:"summary,omitempty"`
	AnalyzedAt time.Time       `json:"timestamp"`
}

// BatchResult aggregates a batch run. Results keep the input order.
type BatchResult struct {
	Processed  int               `json:"processed"`
	Successful int               `json:"successful"`
	Errors     int               `json:"errors"`
	Results    []BatchItemResult `json:"results"`
}

// CacheEntry is a cached analysis keyed by content digest
type CacheEntry struct {
	Key         string
	RiskScore   int
	ThreatLevel ThreatLevel
	Payload     []byte
	LastSeen    time.Time
	ExpiresAt   time.Time
}
