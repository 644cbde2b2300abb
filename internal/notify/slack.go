package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"smartgriev/internal/domain"
)

// StaffRecipient addresses the configured staff channel, or the staff
// members directly when no channel is set.
const StaffRecipient = "staff"

const userCacheTTL = 5 * time.Minute

type SlackNotifier struct {
	api            *slack.Client
	staffChannelID string
	staffMembers   []string

	mu        sync.Mutex
	users     []slack.User
	fetchedAt time.Time
}

func NewSlackNotifier(api *slack.Client, staffChannelID string, staffMembers []string) *SlackNotifier {
	return &SlackNotifier{api: api, staffChannelID: staffChannelID, staffMembers: staffMembers}
}

func (s *SlackNotifier) Notify(ctx context.Context, n domain.Notification) error {
	targets, err := s.targets(ctx, n.Recipient)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("notify: no slack destination for recipient %q", n.Recipient)
	}

	msg := Render(n)
	var failed []string
	for _, target := range targets {
		if err := s.post(ctx, target, msg); err != nil {
			log.Printf("Error sending escalation to %s: %v", target, err)
			failed = append(failed, target)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: slack delivery failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// PostSummary posts free text to the staff channel, if one is configured.
func (s *SlackNotifier) PostSummary(ctx context.Context, text string) error {
	if s.staffChannelID == "" {
		return nil
	}
	_, _, err := s.api.PostMessageContext(ctx, s.staffChannelID, slack.MsgOptionText(text, false))
	return err
}

func (s *SlackNotifier) targets(ctx context.Context, recipient string) ([]string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || recipient == StaffRecipient {
		if s.staffChannelID != "" {
			return []string{s.staffChannelID}, nil
		}
		ids, unresolved, err := s.resolveUserIDs(ctx, s.staffMembers)
		if len(unresolved) > 0 {
			log.Printf("Unresolved staff members: %s", strings.Join(unresolved, ", "))
		}
		if err != nil && len(ids) == 0 {
			return nil, err
		}
		return ids, nil
	}
	if isLikelySlackChannel(recipient) {
		return []string{recipient}, nil
	}
	ids, unresolved, err := s.resolveUserIDs(ctx, []string{recipient})
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		return nil, fmt.Errorf("notify: unknown slack user %q", recipient)
	}
	return ids, nil
}

// post sends to a channel directly, or opens a DM first for user IDs.
func (s *SlackNotifier) post(ctx context.Context, target, msg string) error {
	channelID := target
	if isLikelySlackID(target) {
		channel, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
			Users: []string{target},
		})
		if err != nil {
			return fmt.Errorf("open DM with %s: %w", target, err)
		}
		channelID = channel.ID
	}
	_, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(msg, false))
	return err
}

func (s *SlackNotifier) cachedUsers(ctx context.Context) ([]slack.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users != nil && time.Since(s.fetchedAt) < userCacheTTL {
		return s.users, nil
	}
	users, err := s.api.GetUsersContext(ctx)
	if err != nil {
		return nil, err
	}
	s.users = users
	s.fetchedAt = time.Now()
	return users, nil
}

func (s *SlackNotifier) resolveUserIDs(ctx context.Context, identifiers []string) ([]string, []string, error) {
	var ids []string
	var names []string

	for _, raw := range identifiers {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if isLikelySlackID(val) {
			ids = append(ids, val)
		} else {
			names = append(names, val)
		}
	}
	if len(names) == 0 {
		return uniqueStrings(ids), nil, nil
	}

	users, err := s.cachedUsers(ctx)
	if err != nil {
		log.Printf("resolve users: get users error: %v", err)
		return uniqueStrings(ids), names, err
	}

	nameToID := make(map[string]string)
	for _, user := range users {
		addName := func(n string) {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				return
			}
			if _, exists := nameToID[n]; !exists {
				nameToID[n] = user.ID
			}
		}
		addName(user.Name)
		addName(user.RealName)
		addName(user.Profile.DisplayName)
	}

	var unresolved []string
	for _, name := range names {
		if id, ok := nameToID[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		} else {
			unresolved = append(unresolved, name)
		}
	}
	return uniqueStrings(ids), unresolved, nil
}

func isLikelySlackID(val string) bool {
	return hasSlackIDShape(val, 'U', 'W')
}

func isLikelySlackChannel(val string) bool {
	return hasSlackIDShape(val, 'C', 'G', 'D')
}

func hasSlackIDShape(val string, prefixes ...rune) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			ok := false
			for _, p := range prefixes {
				if r == p {
					ok = true
				}
			}
			if !ok {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func uniqueStrings(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
