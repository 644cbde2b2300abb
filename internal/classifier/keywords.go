package classifier

import (
	"fmt"
	"os"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"smartgriev/internal/domain"
)

const maxKeywordConfidence = 0.8

var defaultLexicon = Lexicon{
	domain.DeptInfrastructure: {"road", "pothole", "bridge", "building", "construction", "street light", "streetlight", "footpath", "drainage", "pavement"},
	domain.DeptHealthcare:     {"hospital", "doctor", "medicine", "health", "clinic", "ambulance", "disease", "nurse", "vaccine", "mosquito"},
	domain.DeptEducation:      {"school", "teacher", "college", "education", "student", "university", "classroom", "exam", "scholarship", "midday meal"},
	domain.DeptTransportation: {"bus", "traffic", "transport", "train", "metro", "parking", "taxi", "railway", "signal", "rickshaw"},
	domain.DeptUtilities:      {"water", "electricity", "power", "gas", "sewage", "garbage", "waste", "pipeline", "supply", "outage"},
}

var emergencyKeywords = []string{"fire", "collapse", "electrocution", "accident", "flood", "emergency"}

// Lexicon maps each department code to the keywords that vote for it.
type Lexicon map[domain.DepartmentCode][]string

func DefaultLexicon() Lexicon {
	out := make(Lexicon, len(defaultLexicon))
	for code, kws := range defaultLexicon {
		out[code] = append([]string(nil), kws...)
	}
	return out
}

// LoadLexicon reads a yaml mapping of department code to keyword list.
// Departments missing from the file keep their built-in keywords.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	lex := DefaultLexicon()
	for key, kws := range raw {
		code, ok := domain.ParseDepartmentCode(key)
		if !ok {
			return nil, fmt.Errorf("lexicon: unknown department code %q", key)
		}
		lex[code] = kws
	}
	return lex, nil
}

type keywordMatch struct {
	Department domain.DepartmentCode
	Matches    int
	Confidence float64
	Emergency  bool
}

// keywordMatcher scores text against a lexicon in one Aho-Corasick pass.
// The automaton keeps per-call state, so Match is serialized.
type keywordMatcher struct {
	mu        sync.Mutex
	matcher   *ahocorasick.Matcher
	keywords  []string
	kwToDepts map[string][]int
	emergency *ahocorasick.Matcher
	order     []domain.DepartmentCode
}

func newKeywordMatcher(lex Lexicon) *keywordMatcher {
	m := &keywordMatcher{
		kwToDepts: make(map[string][]int),
		order:     domain.DepartmentCodes(),
	}
	for deptIdx, code := range m.order {
		seen := make(map[string]bool)
		for _, kw := range lex[code] {
			kw = normalizeText(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			if _, exists := m.kwToDepts[kw]; !exists {
				m.keywords = append(m.keywords, kw)
			}
			m.kwToDepts[kw] = append(m.kwToDepts[kw], deptIdx)
		}
	}
	if len(m.keywords) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.keywords)
	}
	m.emergency = ahocorasick.NewStringMatcher(emergencyKeywords)
	return m
}

// Match counts, per department, the distinct keywords that occur in text.
// Ties go to the department declared first; no hits yields the default
// department with zero confidence.
func (m *keywordMatcher) Match(text string) keywordMatch {
	normalized := []byte(normalizeText(text))
	scores := make([]int, len(m.order))

	m.mu.Lock()
	var hits []int
	if m.matcher != nil {
		hits = m.matcher.Match(normalized)
	}
	emergency := len(m.emergency.Match(normalized)) > 0
	m.mu.Unlock()

	for _, idx := range hits {
		if idx >= len(m.keywords) {
			continue
		}
		for _, dept := range m.kwToDepts[m.keywords[idx]] {
			scores[dept]++
		}
	}

	best := -1
	bestScore := 0
	for i, score := range scores {
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return keywordMatch{Department: domain.DefaultDepartment, Emergency: emergency}
	}
	return keywordMatch{
		Department: m.order[best],
		Matches:    bestScore,
		Confidence: keywordConfidence(bestScore),
		Emergency:  emergency,
	}
}

func keywordConfidence(matches int) float64 {
	c := float64(matches) / 10
	if c > maxKeywordConfidence {
		return maxKeywordConfidence
	}
	return c
}

func normalizeText(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
