// Package intake turns a filed complaint into a classified, persisted
// record.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"smartgriev/internal/domain"
	"smartgriev/internal/translate"
)

var ErrEmptyComplaint = errors.New("intake: complaint text is empty")

// bucketFragments maps each department code onto a registry name fragment.
var bucketFragments = map[domain.DepartmentCode]string{
	domain.DeptInfrastructure: "Public Works",
	domain.DeptHealthcare:     "Health",
	domain.DeptEducation:      "Education",
	domain.DeptTransportation: "Transport",
	domain.DeptUtilities:      "Water",
}

type Classifier interface {
	Classify(ctx context.Context, text, title string) domain.ClassificationResult
}

type Translator interface {
	Translate(ctx context.Context, text, target, source string) (string, bool)
	DefaultLanguage() string
}

type Store interface {
	CreateComplaint(ctx context.Context, c domain.Complaint) (domain.Complaint, error)
	FindDepartmentByNameFragment(ctx context.Context, fragment string) (domain.Department, error)
	InsertClassificationRecord(ctx context.Context, r domain.ClassificationRecord) error
}

type Request struct {
	Title    string
	Text     string
	Language string // optional; detected when empty
	Category string
	FiledBy  string
}

type Result struct {
	Complaint      domain.Complaint
	Classification domain.ClassificationResult
	Translated     bool
}

type Service struct {
	classifier Classifier
	translator Translator
	store      Store
}

// NewService wires intake. translator may be nil, in which case text is
// classified as filed.
func NewService(c Classifier, t Translator, s Store) *Service {
	return &Service{classifier: c, translator: t, store: s}
}

// File classifies and stores one complaint. Classification never blocks
// creation; only storage errors are returned.
func (s *Service) File(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, ErrEmptyComplaint
	}
	title := strings.TrimSpace(req.Title)

	lang, err := translate.Canonical(req.Language)
	if err == nil && lang != "" && !translate.IsSupported(lang) {
		log.WithField("language", lang).Warn("intake: declared language not supported, detecting from text")
		lang = ""
	}
	if err != nil || lang == "" {
		lang, _ = translate.DetectLanguage(title + " " + text)
	}

	classText, classTitle := text, title
	translated := false
	if s.translator != nil && lang != s.translator.DefaultLanguage() {
		target := s.translator.DefaultLanguage()
		if out, ok := s.translator.Translate(ctx, text, target, lang); ok {
			classText = out
			translated = true
		} else {
			log.WithField("language", lang).Warn("intake: translation failed, classifying original text")
		}
		if title != "" && translated {
			if out, ok := s.translator.Translate(ctx, title, target, lang); ok {
				classTitle = out
			}
		}
	}

	result := s.classifier.Classify(ctx, classText, classTitle)

	c := domain.Complaint{
		Title:          title,
		Description:    classText,
		OriginalText:   text,
		Language:       lang,
		Category:       req.Category,
		DepartmentCode: result.Department,
		Status:         domain.StatusPending,
		Priority:       InitialPriority(result.Urgency),
		Urgency:        result.Urgency,
		FiledBy:        req.FiledBy,
	}
	if c.Category == "" {
		c.Category = strings.ToLower(string(result.Department))
	}
	if c.Urgency == "" {
		c.Urgency = domain.UrgencyMedium
	}

	if fragment, ok := bucketFragments[result.Department]; ok {
		dept, err := s.store.FindDepartmentByNameFragment(ctx, fragment)
		if err != nil {
			log.WithFields(log.Fields{"department": result.Department, "fragment": fragment, "error": err}).Warn("intake: no registry department for bucket")
		} else {
			c.DepartmentID = dept.ID
		}
	}

	saved, err := s.store.CreateComplaint(ctx, c)
	if err != nil {
		return Result{}, fmt.Errorf("intake: save complaint: %w", err)
	}

	rec := domain.ClassificationRecord{
		ComplaintID: saved.ID,
		Department:  result.Department,
		Confidence:  result.Confidence,
		Method:      result.Method,
		Provider:    result.Provider,
		Reasoning:   result.Reasoning,
	}
	if err := s.store.InsertClassificationRecord(ctx, rec); err != nil {
		log.WithFields(log.Fields{"complaint_id": saved.ID, "error": err}).Warn("intake: classification history not recorded")
	}

	log.Printf("Filed complaint %s department=%s method=%s confidence=%.2f language=%s", saved.ID, result.Department, result.Method, result.Confidence, lang)
	return Result{Complaint: saved, Classification: result, Translated: translated}, nil
}

// InitialPriority derives the starting priority from classified urgency.
func InitialPriority(u domain.Urgency) domain.Priority {
	switch u {
	case domain.UrgencyCritical:
		return domain.PriorityUrgent
	case domain.UrgencyHigh:
		return domain.PriorityHigh
	default:
		return domain.PriorityMedium
	}
}
