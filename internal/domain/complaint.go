package domain

import "time"

type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "pending"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusRejected   ComplaintStatus = "rejected"
	StatusClosed     ComplaintStatus = "closed"
)

// IsOpen reports whether the complaint is still awaiting resolution.
func (s ComplaintStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityOrder = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencyOrder = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// NextPriority advances p one step, clamped at urgent. Unknown values are
// treated as medium.
func NextPriority(p Priority) Priority {
	return priorityOrder[nextIndex(priorityRank(p), len(priorityOrder))]
}

// NextUrgency advances u one step, clamped at critical. Unknown values are
// treated as medium.
func NextUrgency(u Urgency) Urgency {
	return urgencyOrder[nextIndex(urgencyRank(u), len(urgencyOrder))]
}

func PriorityRank(p Priority) int { return priorityRank(p) }

func UrgencyRank(u Urgency) int { return urgencyRank(u) }

func ParsePriority(s string) (Priority, bool) {
	for _, p := range priorityOrder {
		if string(p) == s {
			return p, true
		}
	}
	return PriorityMedium, false
}

func ParseUrgency(s string) (Urgency, bool) {
	for _, u := range urgencyOrder {
		if string(u) == s {
			return u, true
		}
	}
	return UrgencyMedium, false
}

func priorityRank(p Priority) int {
	for i, v := range priorityOrder {
		if v == p {
			return i
		}
	}
	return 1
}

func urgencyRank(u Urgency) int {
	for i, v := range urgencyOrder {
		if v == u {
			return i
		}
	}
	return 1
}

func nextIndex(i, n int) int {
	if i+1 >= n {
		return n - 1
	}
	return i + 1
}

// Complaint is one citizen-filed grievance as seen by the classification and
// escalation pipeline.
type Complaint struct {
	ID              string
	Title           string
	Description     string
	OriginalText    string // text as filed, before translation
	Language        string
	Category        string
	DepartmentID    int64 // 0 until classified and mapped onto the registry
	DepartmentCode  DepartmentCode
	Status          ComplaintStatus
	Priority        Priority
	Urgency         Urgency
	Escalated       bool
	EscalatedAt     time.Time
	EscalationCount int
	FiledBy         string // filer user reference, recipient of status updates
	InternalNotes   string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaysPending is the whole number of days between creation and now.
func (c Complaint) DaysPending(now time.Time) int {
	d := now.Sub(c.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

type Department struct {
	ID             int64
	Name           string
	Zone           string
	ContactEmail   string
	ContactPhone   string
	SlackChannelID string
	Active         bool
}
