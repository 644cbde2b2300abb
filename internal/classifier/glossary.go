package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"smartgriev/internal/domain"
)

const glossaryConfidence = 0.99

// Glossary pins phrases to a department regardless of what the model said.
type Glossary struct {
	Terms []GlossaryTerm `yaml:"terms"`
}

type GlossaryTerm struct {
	Phrase     string `yaml:"phrase"`
	Department string `yaml:"department"`
}

func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary yaml: %w", err)
	}
	for _, term := range g.Terms {
		if _, ok := domain.ParseDepartmentCode(term.Department); !ok {
			return nil, fmt.Errorf("glossary: phrase %q maps to unknown department %q", term.Phrase, term.Department)
		}
	}
	return &g, nil
}

// AppendGlossaryTerm adds phrase to the glossary file unless it is already
// present.
func AppendGlossaryTerm(path, phrase string, code domain.DepartmentCode) error {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || !code.Valid() {
		return nil
	}

	var glossary Glossary
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &glossary); err != nil {
			return fmt.Errorf("parse existing glossary: %w", err)
		}
	}

	normalized := normalizeText(phrase)
	for _, t := range glossary.Terms {
		if normalizeText(t.Phrase) == normalized {
			return nil
		}
	}

	glossary.Terms = append(glossary.Terms, GlossaryTerm{
		Phrase:     phrase,
		Department: string(code),
	})
	out, err := yaml.Marshal(&glossary)
	if err != nil {
		return fmt.Errorf("marshal glossary: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// lookup returns the department of the first term found in text.
func (g *Glossary) lookup(text string) (domain.DepartmentCode, string, bool) {
	if g == nil {
		return "", "", false
	}
	normalized := normalizeText(text)
	for _, term := range g.Terms {
		phrase := normalizeText(term.Phrase)
		if phrase == "" || !strings.Contains(normalized, phrase) {
			continue
		}
		code, ok := domain.ParseDepartmentCode(term.Department)
		if ok {
			return code, term.Phrase, true
		}
	}
	return "", "", false
}
