// Package classifier maps complaint text onto one of the fixed department
// codes. An LLM answers first; any provider or parse failure falls back to
// deterministic keyword scoring, so Classify always returns a valid code.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"smartgriev/internal/domain"
	"smartgriev/internal/integrations/llm"
	"smartgriev/internal/metrics"
)

const (
	defaultTemperature = 0.1
	defaultCallTimeout = 30 * time.Second
	defaultConfidence  = 0.5
	maxPromptTextChars = 4000
)

var departmentDescriptions = map[domain.DepartmentCode]string{
	domain.DeptInfrastructure: "roads, potholes, bridges, public buildings, street lights, footpaths, drainage",
	domain.DeptHealthcare:     "hospitals, clinics, doctors, medicines, ambulances, disease outbreaks, public health",
	domain.DeptEducation:      "schools, colleges, teachers, students, scholarships, midday meals",
	domain.DeptTransportation: "buses, trains, metro, traffic, parking, signals, public transport",
	domain.DeptUtilities:      "water supply, electricity, gas, sewage, garbage collection, waste management",
}

type Classifier struct {
	provider    llm.Provider
	keywords    *keywordMatcher
	glossary    *Glossary
	temperature float64
	timeout     time.Duration
	metrics     *metrics.Metrics
}

type Option func(*Classifier)

func WithLexicon(lex Lexicon) Option {
	return func(c *Classifier) { c.keywords = newKeywordMatcher(lex) }
}

func WithGlossary(g *Glossary) Option {
	return func(c *Classifier) { c.glossary = g }
}

func WithTemperature(t float64) Option {
	return func(c *Classifier) { c.temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// New builds a classifier. provider may be nil, in which case every call
// uses the keyword fallback.
func New(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:    provider,
		keywords:    newKeywordMatcher(defaultLexicon),
		temperature: defaultTemperature,
		timeout:     defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: provider errors, timeouts and malformed responses
// all end in the keyword fallback.
func (c *Classifier) Classify(ctx context.Context, text, title string) domain.ClassificationResult {
	result, err := c.classifyWithLLM(ctx, text, title)
	if err != nil {
		log.WithField("error", err).Warn("llm classification failed, using keyword fallback")
		result = c.classifyByKeywords(title + " " + text)
		result.Error = err.Error()
	}
	c.metrics.ObserveClassification(string(result.Method), string(result.Department), result.FellBack())
	return result
}

// ClassifyByKeywords runs only the deterministic fallback.
func (c *Classifier) ClassifyByKeywords(text, title string) domain.ClassificationResult {
	return c.classifyByKeywords(title + " " + text)
}

func (c *Classifier) classifyWithLLM(ctx context.Context, text, title string) (domain.ClassificationResult, error) {
	if c.provider == nil {
		return domain.ClassificationResult{}, llm.ErrNoProvider
	}

	system, user := buildPrompts(text, title)
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Generate(callCtx, llm.Request{
		System:      system,
		User:        user,
		Temperature: c.temperature,
		MaxTokens:   300,
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	result, err := parseClassification(resp.Text)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	result.Provider = resp.Provider
	log.Debugf("llm classify provider=%s model=%s department=%s confidence=%.2f tokens=%d", resp.Provider, resp.Model, result.Department, result.Confidence, resp.Usage.TotalTokens())

	if code, phrase, ok := c.glossary.lookup(title + " " + text); ok {
		if code != result.Department {
			result.Reasoning = fmt.Sprintf("Glossary phrase %q overrides %s. %s", phrase, result.Department, result.Reasoning)
		}
		result.Department = code
		result.Method = domain.MethodGlossary
		if result.Confidence < glossaryConfidence {
			result.Confidence = glossaryConfidence
		}
	}
	return result, nil
}

func (c *Classifier) classifyByKeywords(text string) domain.ClassificationResult {
	match := c.keywords.Match(text)
	urgency := domain.UrgencyMedium
	if match.Emergency {
		urgency = domain.UrgencyHigh
	}
	return domain.ClassificationResult{
		Department: match.Department,
		Confidence: match.Confidence,
		Reasoning:  fmt.Sprintf("Classified using keyword-based fallback (matched %d keywords)", match.Matches),
		Urgency:    urgency,
		Method:     domain.MethodKeyword,
	}
}

func buildPrompts(text, title string) (string, string) {
	var deptLines strings.Builder
	for _, code := range domain.DepartmentCodes() {
		deptLines.WriteString(fmt.Sprintf("- %s: %s\n", code, departmentDescriptions[code]))
	}

	system := fmt.Sprintf(`You route citizen grievances to the responsible civic department.
Choose exactly one department code from:
%s
Also rate urgency as one of: low, medium, high, critical.
Set confidence between 0 and 1.

Respond with a single JSON object only (no markdown):
{"department": "UTILITIES", "confidence": 0.86, "urgency": "medium", "reasoning": "one sentence"}`, deptLines.String())

	text = strings.TrimSpace(text)
	text = truncateUTF8(text, maxPromptTextChars)
	title = strings.TrimSpace(title)
	if title == "" {
		title = "(none)"
	}
	user := fmt.Sprintf("Complaint title: %s\nComplaint text: %s\n", title, text)
	return system, user
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune and
// marks the cut with "...".
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// parseClassification reads the first JSON object in the model output.
// Unknown department codes are coerced to the default department.
func parseClassification(responseText string) (domain.ClassificationResult, error) {
	obj, err := ExtractJSONObject(responseText)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	if !gjson.Valid(obj) {
		return domain.ClassificationResult{}, fmt.Errorf("classifier: invalid JSON object: %.200s", obj)
	}
	parsed := gjson.Parse(obj)

	result := domain.ClassificationResult{
		Confidence: parseConfidence(parsed.Get("confidence")),
		Reasoning:  strings.TrimSpace(parsed.Get("reasoning").String()),
		Method:     domain.MethodLLM,
	}

	if result.Reasoning == "" {
		result.Reasoning = "No reasoning given by model."
	}

	raw := strings.TrimSpace(parsed.Get("department").String())
	code, ok := domain.ParseDepartmentCode(raw)
	result.Department = code
	if !ok {
		note := fmt.Sprintf("Fallback: model returned unknown department %q, assigned default %s.", raw, domain.DefaultDepartment)
		result.Reasoning = note + " " + result.Reasoning
	}

	urgency, _ := domain.ParseUrgency(strings.ToLower(strings.TrimSpace(parsed.Get("urgency").String())))
	result.Urgency = urgency
	return result, nil
}

func parseConfidence(v gjson.Result) float64 {
	var c float64
	switch v.Type {
	case gjson.Number:
		c = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return defaultConfidence
		}
		c = parsed
	default:
		return defaultConfidence
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
