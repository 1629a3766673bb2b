package summary

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/utils"
	"go.uber.org/zap"
)

const (
	emptySummary      = "Email appears to be empty or contains only formatting."
	shortSummaryRunes = 200
	maxSummaryRunes   = 300
	maxKeyPoints      = 3
	maxActionItems    = 5
)

type categoryRule struct {
	category core.Category
	re       *regexp.Regexp
}

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+`)

	categoryRules = []categoryRule{
		{core.CategoryBusiness, regexp.MustCompile(`(?i)meeting|schedule|calendar|appointment|conference`)},
		{core.CategoryMarketing, regexp.MustCompile(`(?i)offer|sale|discount|buy|purchase|deal`)},
		{core.CategoryNotification, regexp.MustCompile(`(?i)notification|alert|update|status|confirmation`)},
		{core.CategoryPersonal, regexp.MustCompile(`(?i)family|friend|personal|birthday|wedding`)},
	}

	highUrgency = regexp.MustCompile(`(?i)urgent|asap|immediate|emergency|critical|deadline`)
	lowUrgency  = regexp.MustCompile(`(?i)whenever|no rush|when you can|at your convenience`)

	positiveWords = regexp.MustCompile(`(?i)thank|appreciate|great|excellent|wonderful|pleased|happy|congratulations`)
	negativeWords = regexp.MustCompile(`(?i)problem|issue|concern|disappointed|angry|frustrated|complaint|error`)

	actionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)please\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)need\s+to\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)should\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)must\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)required\s+to\s+([^.!?]+)`),
		regexp.MustCompile(`(?i)action\s+needed:?\s*([^.!?]+)`),
	}

	importanceCue = regexp.MustCompile(`(?i)important|key|main|primary|essential|critical|note|remember`)
	detailCue     = regexp.MustCompile(`(?i)\$[\d,]+|\d+%|deadline|date|time|meeting|appointment`)
)

// sentence is a trimmed sentence and whether it ended with a question mark
type sentence struct {
	text     string
	question bool
}

// Summarizer implements core.ContentSummarizer with keyword heuristics
type Summarizer struct {
	logger *zap.Logger
}

// NewSummarizer creates a new content summarizer
func NewSummarizer(logger *zap.Logger) *Summarizer {
	return &Summarizer{logger: logger}
}

// Summarize classifies content and extracts key points and action items
func (s *Summarizer) Summarize(content string) *core.SummaryResult {
	clean := strings.Join(strings.Fields(content), " ")
	sentences := splitSentences(clean)

	result := &core.SummaryResult{
		KeyPoints:   keyPoints(sentences),
		ActionItems: actionItems(content),
		Sentiment:   sentiment(content),
		Urgency:     urgency(content),
		Category:    category(content),
		WordCount:   len(strings.Fields(clean)),
	}
	result.Summary = summaryText(clean, sentences, result.KeyPoints)

	s.logger.Debug("Summarised text",
		zap.String("category", string(result.Category)),
		zap.String("urgency", string(result.Urgency)),
		zap.String("sentiment", string(result.Sentiment)),
		zap.Int("word_count", result.WordCount))

	return result
}

// splitSentences splits on runs of terminators and drops fragments of ten
// characters or fewer
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	add := func(part string, question bool) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > 10 {
			out = append(out, sentence{text: part, question: question})
		}
	}
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		add(text[start:loc[0]], strings.Contains(text[loc[0]:loc[1]], "?"))
		start = loc[1]
	}
	add(text[start:], false)
	return out
}

func category(content string) core.Category {
	for _, rule := range categoryRules {
		if rule.re.MatchString(content) {
			return rule.category
		}
	}
	return core.CategoryGeneral
}

func urgency(content string) core.Urgency {
	switch {
	case highUrgency.MatchString(content):
		return core.UrgencyHigh
	case lowUrgency.MatchString(content):
		return core.UrgencyLow
	default:
		return core.UrgencyNormal
	}
}

// sentiment requires one side to lead by more than one match
func sentiment(content string) core.Sentiment {
	pos := len(positiveWords.FindAllStringIndex(content, -1))
	neg := len(negativeWords.FindAllStringIndex(content, -1))
	switch {
	case pos > neg+1:
		return core.SentimentPositive
	case neg > pos+1:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}

// actionItems collects introducer captures in pattern order, deduplicated
// by exact match
func actionItems(content string) []string {
	items := []string{}
	seen := make(map[string]bool)
	for _, re := range actionPatterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			item := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(item) <= 5 || seen[item] {
				continue
			}
			seen[item] = true
			items = append(items, item)
		}
	}
	if len(items) > maxActionItems {
		items = items[:maxActionItems]
	}
	return items
}

func keyPoints(sentences []sentence) []string {
	points := []string{}
	for _, s := range sentences {
		if len(points) == maxKeyPoints {
			break
		}
		if utf8.RuneCountInString(s.text) <= 20 {
			continue
		}
		if importanceCue.MatchString(s.text) || detailCue.MatchString(s.text) || s.question {
			points = append(points, s.text)
		}
	}
	return points
}

func summaryText(clean string, sentences []sentence, points []string) string {
	switch {
	case len(sentences) == 0:
		return emptySummary
	case len(sentences) <= 2:
		if utf8.RuneCountInString(clean) > shortSummaryRunes {
			return utils.TruncateRunes(clean, shortSummaryRunes) + "..."
		}
		return clean
	}

	first := sentences[0].text
	var text string
	if len(points) > 0 {
		text = first + ". Key points include: " + points[0]
	} else {
		text = first + ". " + sentences[len(sentences)-1].text
	}
	if utf8.RuneCountInString(text) > maxSummaryRunes {
		text = utils.TruncateRunes(text, maxSummaryRunes-3) + "..."
	}
	return text
}
