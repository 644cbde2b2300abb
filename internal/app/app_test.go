package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smartgriev/internal/domain"
	"smartgriev/internal/storage/sqlite"
)

// testConfig writes a config file pointing at a temp database and returns
// the database path.
func testConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "llm_provider: openai\n" +
		"db_path: " + dbPath + "\n" +
		"timezone: UTC\n" +
		"log_level: error\n" + extra
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SLACK_BOT_TOKEN", "")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	want := []string{"serve", "sweep", "classify", "translate", "detect", "file", "departments", "glossary", "complaints"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Fatal("expected persistent --config flag")
	}
}

func TestDetectCommand(t *testing.T) {
	testConfig(t, "")
	out, err := run(t, "detect", "सड़क पर बहुत गड्ढे हैं")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !strings.Contains(out, "hi (Hindi)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDepartmentsSeedAndList(t *testing.T) {
	testConfig(t, "")
	out, err := run(t, "departments", "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "seeded 7 departments") {
		t.Fatalf("unexpected seed output %q", out)
	}

	out, err = run(t, "departments", "seed")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "seeded 0 departments") {
		t.Fatalf("expected idempotent seed, got %q", out)
	}

	out, err = run(t, "departments", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, name := range []string{"Public Works", "Water Supply", "Sanitation"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %q in list output:\n%s", name, out)
		}
	}
}

func TestSweepCommandEscalatesStaleComplaint(t *testing.T) {
	dbPath := testConfig(t, "send_notifications: true\n")

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c, err := store.CreateComplaint(context.Background(), domain.Complaint{
		Title:     "Garbage not collected",
		FiledBy:   "citizen-7",
		Priority:  domain.PriorityLow,
		Urgency:   domain.UrgencyLow,
		CreatedAt: time.Now().Add(-5 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.Close()

	out, err := run(t, "sweep", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "(dry run)") || !strings.Contains(out, c.ID) {
		t.Fatalf("unexpected dry-run output:\n%s", out)
	}

	store, err = sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := store.GetComplaint(context.Background(), c.ID)
	store.Close()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Escalated {
		t.Fatal("dry run must not persist")
	}

	out, err = run(t, "sweep", "--days", "3")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "1 escalated") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}

	store, err = sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	got, err = store.GetComplaint(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Escalated || got.Priority != domain.PriorityMedium || got.EscalationCount != 1 {
		t.Fatalf("unexpected complaint after sweep: %+v", got)
	}
	notes, err := store.ListNotifications(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Recipient != "citizen-7" {
		t.Fatalf("expected one in-app notification for the filer, got %+v", notes)
	}
}

func TestGlossaryAddRequiresConfiguredPath(t *testing.T) {
	testConfig(t, "")
	if _, err := run(t, "glossary", "add", "HEALTHCARE", "PHC"); err == nil {
		t.Fatal("expected error without llm_glossary_path")
	}
}

func TestGlossaryAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	if err := os.WriteFile(path, []byte("terms: []\n"), 0644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}
	testConfig(t, "llm_glossary_path: "+path+"\n")

	if _, err := run(t, "glossary", "add", "healthcare", "PHC", "closed"); err != nil {
		t.Fatalf("glossary add: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "PHC closed") || !strings.Contains(string(data), "HEALTHCARE") {
		t.Fatalf("unexpected glossary:\n%s", data)
	}
}

func TestComplaintsSetStatusAndList(t *testing.T) {
	dbPath := testConfig(t, "")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c, err := store.CreateComplaint(context.Background(), domain.Complaint{Title: "Broken streetlight"})
	store.Close()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := run(t, "complaints", "set-status", c.ID, "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if _, err := run(t, "complaints", "set-status", c.ID, "resolved"); err != nil {
		t.Fatalf("set-status: %v", err)
	}

	out, err := run(t, "complaints", "list", "--status", "resolved")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Broken streetlight") {
		t.Fatalf("expected resolved complaint in output:\n%s", out)
	}
	if _, err := run(t, "complaints", "list", "--priority", "extreme"); err == nil {
		t.Fatal("expected error for unknown priority")
	}
	out, err = run(t, "complaints", "list", "--priority", "medium")
	if err != nil || !strings.Contains(out, "Broken streetlight") {
		t.Fatalf("expected medium complaint listed, err=%v:\n%s", err, out)
	}
	out, err = run(t, "complaints", "list", "--priority", "urgent")
	if err != nil || strings.Contains(out, "Broken streetlight") {
		t.Fatalf("medium complaint listed as urgent, err=%v:\n%s", err, out)
	}

	out, err = run(t, "complaints", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if strings.Contains(out, "Broken streetlight") {
		t.Fatalf("resolved complaint listed as pending:\n%s", out)
	}
}

func TestFileRejectsUnsupportedLanguage(t *testing.T) {
	testConfig(t, "")
	_, err := run(t, "file", "--lang", "fr", "Les ordures ne sont pas ramassées")
	if err == nil || !strings.Contains(err.Error(), "unsupported language") {
		t.Fatalf("expected unsupported language error, got %v", err)
	}
}
