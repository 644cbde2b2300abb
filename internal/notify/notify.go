// Package notify delivers escalation notifications. Delivery is best effort:
// callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"smartgriev/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Router sends each notification to the notifier registered for its
// channel. Channels without a notifier go to the fallback, if any.
type Router struct {
	routes   map[domain.NotificationChannel]Notifier
	fallback Notifier
}

func NewRouter(fallback Notifier) *Router {
	return &Router{routes: make(map[domain.NotificationChannel]Notifier), fallback: fallback}
}

func (r *Router) Handle(ch domain.NotificationChannel, n Notifier) *Router {
	r.routes[ch] = n
	return r
}

func (r *Router) Notify(ctx context.Context, n domain.Notification) error {
	if target, ok := r.routes[n.Channel]; ok {
		return target.Notify(ctx, n)
	}
	if r.fallback != nil {
		return r.fallback.Notify(ctx, n)
	}
	return fmt.Errorf("notify: no route for channel %q", n.Channel)
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, target := range m {
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	log.WithFields(log.Fields{
		"complaint_id": n.ComplaintID,
		"recipient":    n.Recipient,
		"channel":      n.Channel,
		"template":     n.TemplateID,
	}).Info(Render(n))
	return nil
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
}

// StoreNotifier records in-app notifications for the citizen portal to
// pick up.
type StoreNotifier struct {
	store NotificationStore
}

func NewStoreNotifier(store NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (s *StoreNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("notify: in-app notification for %s has no recipient", n.ComplaintID)
	}
	_, err := s.store.InsertNotification(ctx, n)
	return err
}

// Render turns a notification into the message text shown to people.
func Render(n domain.Notification) string {
	c := n.Context
	switch n.TemplateID {
	case domain.TemplateComplaintEscalated:
		return fmt.Sprintf("Your complaint %q has been escalated after %s days without resolution. Priority is now %s.",
			orDefault(c["title"], n.ComplaintID), orDefault(c["days_pending"], "?"), orDefault(c["new_priority"], "?"))
	case domain.TemplateEscalationAlert:
		return fmt.Sprintf("Action required: complaint %s (%s) pending %s days was escalated. Priority %s -> %s, urgency %s -> %s, escalation #%s.",
			n.ComplaintID, orDefault(c["department"], "unassigned"), orDefault(c["days_pending"], "?"),
			c["old_priority"], c["new_priority"], c["old_urgency"], c["new_urgency"], orDefault(c["escalation_count"], "1"))
	}

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+c[k])
	}
	return fmt.Sprintf("%s for complaint %s: %s", n.TemplateID, n.ComplaintID, strings.Join(parts, " "))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
