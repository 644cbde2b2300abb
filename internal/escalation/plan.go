package escalation

import (
	"fmt"
	"strconv"
	"time"

	"smartgriev/internal/domain"
	"smartgriev/internal/notify"
)

const DefaultCooldown = 24 * time.Hour

// Policy decides which open complaints are stale enough to escalate.
type Policy struct {
	AgeThresholdDays int
	Cooldown         time.Duration
}

func (p Policy) ageThreshold() time.Duration {
	days := p.AgeThresholdDays
	if days < 0 {
		days = 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// Eligible reports whether c should be escalated at now. A complaint that
// was already escalated waits out the cooldown before escalating again.
func (p Policy) Eligible(c domain.Complaint, now time.Time) bool {
	if !c.Status.IsOpen() {
		return false
	}
	if now.Sub(c.CreatedAt) < p.ageThreshold() {
		return false
	}
	if c.Escalated && !c.EscalatedAt.IsZero() && now.Sub(c.EscalatedAt) < p.Cooldown {
		return false
	}
	return true
}

// Plan computes the escalation of c at now without touching storage.
// ok is false when the policy says c is not due.
func Plan(c domain.Complaint, now time.Time, p Policy) (domain.EscalationDecision, bool) {
	if !p.Eligible(c, now) {
		return domain.EscalationDecision{}, false
	}

	d := domain.EscalationDecision{
		ComplaintID:     c.ID,
		Version:         c.Version,
		DaysPending:     c.DaysPending(now),
		OldPriority:     c.Priority,
		NewPriority:     domain.NextPriority(c.Priority),
		OldUrgency:      c.Urgency,
		NewUrgency:      domain.NextUrgency(c.Urgency),
		EscalatedAt:     now,
		EscalationCount: c.EscalationCount + 1,
	}
	d.Note = fmt.Sprintf("[%s] Auto-escalated after %d days pending: priority %s -> %s, urgency %s -> %s (escalation #%d)",
		now.UTC().Format("2006-01-02 15:04 MST"), d.DaysPending,
		orUnset(string(d.OldPriority)), d.NewPriority, orUnset(string(d.OldUrgency)), d.NewUrgency, d.EscalationCount)

	payload := map[string]string{
		"complaint_id":     c.ID,
		"title":            c.Title,
		"department":       string(c.DepartmentCode),
		"days_pending":     strconv.Itoa(d.DaysPending),
		"old_priority":     string(d.OldPriority),
		"new_priority":     string(d.NewPriority),
		"old_urgency":      string(d.OldUrgency),
		"new_urgency":      string(d.NewUrgency),
		"escalation_count": strconv.Itoa(d.EscalationCount),
	}
	d.Notifications = []domain.Notification{
		{
			ComplaintID: c.ID,
			Recipient:   c.FiledBy,
			Channel:     domain.ChannelInApp,
			TemplateID:  domain.TemplateComplaintEscalated,
			Context:     payload,
			CreatedAt:   now,
		},
		{
			ComplaintID: c.ID,
			Recipient:   notify.StaffRecipient,
			Channel:     domain.ChannelSlack,
			TemplateID:  domain.TemplateEscalationAlert,
			Context:     clone(payload),
			CreatedAt:   now,
		},
	}
	return d, true
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}
