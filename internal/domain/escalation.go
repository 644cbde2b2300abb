package domain

import "time"

// EscalationDecision is computed from one complaint snapshot and applied to
// that complaint as a single unit.
type EscalationDecision struct {
	ComplaintID     string
	Version         int64
	DaysPending     int
	OldPriority     Priority
	NewPriority     Priority
	OldUrgency      Urgency
	NewUrgency      Urgency
	Note            string
	EscalatedAt     time.Time
	EscalationCount int
	Notifications   []Notification
}

// Apply returns c with the decision's fields written onto it.
func (d EscalationDecision) Apply(c Complaint) Complaint {
	c.Priority = d.NewPriority
	c.Urgency = d.NewUrgency
	c.Escalated = true
	c.EscalatedAt = d.EscalatedAt
	c.EscalationCount = d.EscalationCount
	if c.InternalNotes == "" {
		c.InternalNotes = d.Note
	} else {
		c.InternalNotes = c.InternalNotes + "\n" + d.Note
	}
	c.UpdatedAt = d.EscalatedAt
	return c
}

type SweepError struct {
	ComplaintID string
	Err         error
}

type SweepReport struct {
	Found     int
	Escalated int
	Failed    int
	DryRun    bool
	Decisions []EscalationDecision
	Errors    []SweepError
}

type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelSlack NotificationChannel = "slack"
)

const (
	TemplateComplaintEscalated = "complaint_escalated"
	TemplateEscalationAlert    = "escalation_action_required"
)

type Notification struct {
	ID          string
	ComplaintID string
	Recipient   string
	Channel     NotificationChannel
	TemplateID  string
	Context     map[string]string
	CreatedAt   time.Time
}
