package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"

	"smartgriev/internal/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	got  []domain.Notification
	fail error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

type memoryStore struct {
	rows []domain.Notification
}

func (m *memoryStore) InsertNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.rows = append(m.rows, n)
	return n, nil
}

func escalatedNotification(channel domain.NotificationChannel, recipient string) domain.Notification {
	return domain.Notification{
		ComplaintID: "c-42",
		Recipient:   recipient,
		Channel:     channel,
		TemplateID:  domain.TemplateEscalationAlert,
		Context: map[string]string{
			"department":   "Water Supply",
			"days_pending": "4",
			"old_priority": "medium",
			"new_priority": "high",
			"old_urgency":  "medium",
			"new_urgency":  "high",
		},
	}
}

func TestRouterDispatchesByChannel(t *testing.T) {
	inApp := &recordingNotifier{}
	slackN := &recordingNotifier{}
	fallback := &recordingNotifier{}
	r := NewRouter(fallback).Handle(domain.ChannelInApp, inApp).Handle(domain.ChannelSlack, slackN)

	_ = r.Notify(context.Background(), domain.Notification{Channel: domain.ChannelInApp})
	_ = r.Notify(context.Background(), domain.Notification{Channel: domain.ChannelSlack})
	_ = r.Notify(context.Background(), domain.Notification{Channel: "sms"})

	if len(inApp.got) != 1 || len(slackN.got) != 1 || len(fallback.got) != 1 {
		t.Fatalf("unexpected routing in_app=%d slack=%d fallback=%d", len(inApp.got), len(slackN.got), len(fallback.got))
	}
	if err := NewRouter(nil).Notify(context.Background(), domain.Notification{Channel: "sms"}); err == nil {
		t.Fatal("expected error without route or fallback")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{fail: errors.New("boom")}
	err := Multi{bad, ok}.Notify(context.Background(), domain.Notification{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.got) != 1 {
		t.Fatal("later notifiers must still run after a failure")
	}
}

func TestStoreNotifier(t *testing.T) {
	store := &memoryStore{}
	n := NewStoreNotifier(store)
	if err := n.Notify(context.Background(), domain.Notification{ComplaintID: "c1", Recipient: "citizen-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected stored row, got %d", len(store.rows))
	}
	if err := n.Notify(context.Background(), domain.Notification{ComplaintID: "c1"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestRender(t *testing.T) {
	msg := Render(escalatedNotification(domain.ChannelSlack, StaffRecipient))
	for _, want := range []string{"c-42", "Water Supply", "medium -> high", "4 days"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}

	filer := Render(domain.Notification{
		ComplaintID: "c-1",
		TemplateID:  domain.TemplateComplaintEscalated,
		Context:     map[string]string{"title": "Broken pipe", "days_pending": "5", "new_priority": "urgent"},
	})
	if !strings.Contains(filer, `"Broken pipe"`) || !strings.Contains(filer, "urgent") {
		t.Fatalf("unexpected filer message %q", filer)
	}

	other := Render(domain.Notification{ComplaintID: "c-1", TemplateID: "custom", Context: map[string]string{"b": "2", "a": "1"}})
	if other != "custom for complaint c-1: a=1 b=2" {
		t.Fatalf("unexpected generic message %q", other)
	}
}

func newMockSlackAPI(t *testing.T) (*slack.Client, *[]string) {
	t.Helper()

	var mu sync.Mutex
	var posted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		switch path {
		case "users.list":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"members": []map[string]any{
					{
						"id":        "U0STAFF01",
						"name":      "meera",
						"real_name": "Meera Iyer",
						"profile":   map[string]any{"display_name": "Meera"},
					},
				},
			})
		case "conversations.open":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":      true,
				"channel": map[string]any{"id": "D0DIRECT1"},
			})
		case "chat.postMessage":
			_ = r.ParseForm()
			mu.Lock()
			posted = append(posted, r.Form.Get("channel")+"|"+r.Form.Get("text"))
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": r.Form.Get("channel"), "ts": "1.23"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(server.Close)

	return slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/")), &posted
}

func TestSlackNotifierStaffChannel(t *testing.T) {
	api, posted := newMockSlackAPI(t)
	n := NewSlackNotifier(api, "C0STAFF01", nil)

	if err := n.Notify(context.Background(), escalatedNotification(domain.ChannelSlack, StaffRecipient)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(*posted) != 1 || !strings.HasPrefix((*posted)[0], "C0STAFF01|Action required") {
		t.Fatalf("unexpected posts %v", *posted)
	}
}

func TestSlackNotifierDMsStaffByName(t *testing.T) {
	api, posted := newMockSlackAPI(t)
	n := NewSlackNotifier(api, "", []string{"Meera Iyer"})

	if err := n.Notify(context.Background(), escalatedNotification(domain.ChannelSlack, StaffRecipient)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(*posted) != 1 || !strings.HasPrefix((*posted)[0], "D0DIRECT1|") {
		t.Fatalf("expected DM post, got %v", *posted)
	}
}

func TestSlackNotifierDepartmentChannelAndUnknownUser(t *testing.T) {
	api, posted := newMockSlackAPI(t)
	n := NewSlackNotifier(api, "C0STAFF01", nil)

	if err := n.Notify(context.Background(), escalatedNotification(domain.ChannelSlack, "C0WATER01")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(*posted) != 1 || !strings.HasPrefix((*posted)[0], "C0WATER01|") {
		t.Fatalf("expected department channel post, got %v", *posted)
	}
	if err := n.Notify(context.Background(), escalatedNotification(domain.ChannelSlack, "nobody")); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestSlackNotifierPostSummary(t *testing.T) {
	api, posted := newMockSlackAPI(t)
	if err := NewSlackNotifier(api, "", nil).PostSummary(context.Background(), "sweep done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*posted) != 0 {
		t.Fatal("expected no post without staff channel")
	}
	if err := NewSlackNotifier(api, "C0STAFF01", nil).PostSummary(context.Background(), "sweep done"); err != nil {
		t.Fatalf("PostSummary failed: %v", err)
	}
	if len(*posted) != 1 || (*posted)[0] != "C0STAFF01|sweep done" {
		t.Fatalf("unexpected posts %v", *posted)
	}
}

func TestSlackIDShapes(t *testing.T) {
	if !isLikelySlackID("U0STAFF01") || isLikelySlackID("C0STAFF01") || isLikelySlackID("staff") {
		t.Fatal("user id detection wrong")
	}
	if !isLikelySlackChannel("C0STAFF01") || isLikelySlackChannel("U0STAFF01") {
		t.Fatal("channel id detection wrong")
	}
}
