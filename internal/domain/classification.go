package domain

import (
	"strings"
	"time"
)

// DepartmentCode is the coarse bucket produced by the classifier. The set is
// closed and its order is the keyword fallback tie-break order.
type DepartmentCode string

const (
	DeptInfrastructure DepartmentCode = "INFRASTRUCTURE"
	DeptHealthcare     DepartmentCode = "HEALTHCARE"
	DeptEducation      DepartmentCode = "EDUCATION"
	DeptTransportation DepartmentCode = "TRANSPORTATION"
	DeptUtilities      DepartmentCode = "UTILITIES"
)

// DefaultDepartment receives complaints whose classification could not be
// resolved to a known code.
const DefaultDepartment = DeptInfrastructure

var departmentCodes = []DepartmentCode{
	DeptInfrastructure,
	DeptHealthcare,
	DeptEducation,
	DeptTransportation,
	DeptUtilities,
}

// DepartmentCodes returns the enumeration in declaration order.
func DepartmentCodes() []DepartmentCode {
	out := make([]DepartmentCode, len(departmentCodes))
	copy(out, departmentCodes)
	return out
}

// ParseDepartmentCode matches s case-insensitively against the enumeration.
func ParseDepartmentCode(s string) (DepartmentCode, bool) {
	s = strings.TrimSpace(s)
	for _, code := range departmentCodes {
		if strings.EqualFold(s, string(code)) {
			return code, true
		}
	}
	return DefaultDepartment, false
}

func (c DepartmentCode) Valid() bool {
	for _, code := range departmentCodes {
		if c == code {
			return true
		}
	}
	return false
}

type ClassificationMethod string

const (
	MethodLLM      ClassificationMethod = "llm"
	MethodKeyword  ClassificationMethod = "keyword"
	MethodGlossary ClassificationMethod = "glossary"
)

type ClassificationResult struct {
	Department DepartmentCode
	Confidence float64
	Reasoning  string
	Urgency    Urgency
	Method     ClassificationMethod
	Provider   string
	// Error is set when the provider path failed and a fallback produced the
	// result.
	Error string
}

func (r ClassificationResult) FellBack() bool {
	return r.Error != ""
}

type ClassificationRecord struct {
	ID           int64
	ComplaintID  string
	Department   DepartmentCode
	Confidence   float64
	Method       ClassificationMethod
	Provider     string
	Reasoning    string
	ClassifiedAt time.Time
}
