package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"turnpp/internal/domain"
	"turnpp/internal/storage/sqlite"

	"github.com/cockroachdb/errors"
)

func setTestEnv(t *testing.T, jiraURL string) string {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"CONFIG_PATH":          filepath.Join(dir, "missing.yaml"),
		"JIRA_URL":             jiraURL,
		"JIRA_USER":            "ops@example.com",
		"JIRA_TOKEN":           "jira-token",
		"JIRA_ISSUE_TYPE":      "Epic",
		"JIRA_PARENT_STATUSES": "Open",
		"JIRA_CHILD_STATUSES":  "Ready",
		"STORAGE_ROOT":         filepath.Join(dir, "data"),
		"RESULTS_PATH":         filepath.Join(dir, "results"),
		"LOG_PATH":             filepath.Join(dir, "logs"),
		"DB_PATH":              filepath.Join(dir, "turnpp.db"),
		"TIMEZONE":             "UTC",
		"SLACK_BOT_TOKEN":      "",
		"SLACK_CHANNEL_ID":     "",
		"SCHEDULE":             "",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedLedger(t *testing.T, dbPath string, runDate string, outcomes ...domain.TicketOutcome) {
	t.Helper()
	db, err := sqlite.InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	defer db.Close()

	ledger := sqlite.NewLedger(db)
	id, err := ledger.StartRun(runDate, time.Now())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	for _, o := range outcomes {
		o.RunID = id
		if err := ledger.RecordOutcome(o); err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}
	if err := ledger.FinishRun(domain.RunSummary{RunID: id, RunDate: runDate}, time.Now()); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"run", "schedule", "purge", "history"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("console") == nil {
		t.Fatal("expected persistent --config and --console flags")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	setTestEnv(t, "https://jira.example.com")
	t.Setenv("JIRA_TOKEN", "")

	_, err := execute(t, "run", "--console=false")
	if err == nil || !strings.Contains(err.Error(), "jira_token") {
		t.Fatalf("expected missing jira_token error, got %v", err)
	}
}

func TestRunRefusesSecondRunSameDay(t *testing.T) {
	dir := setTestEnv(t, "https://jira.example.com")
	seedLedger(t, filepath.Join(dir, "turnpp.db"), time.Now().UTC().Format("20060102"))

	_, err := execute(t, "run", "--console=false")
	if !errors.Is(err, ErrAlreadyRan) {
		t.Fatalf("expected ErrAlreadyRan, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "logs")); !os.IsNotExist(statErr) {
		t.Fatalf("no log should be opened for a refused run, stat err=%v", statErr)
	}
}

func TestRunAbortsWhenJiraUnreachable(t *testing.T) {
	var pinged bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/myself" {
			t.Fatalf("unexpected request after failed ping: %s", r.URL.Path)
		}
		pinged = true
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()
	dir := setTestEnv(t, server.URL)

	out, err := execute(t, "run", "--force", "--console=false")
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Fatalf("expected aborted run error, got %v", err)
	}
	if !pinged {
		t.Fatal("expected connectivity check")
	}
	if !strings.Contains(out, "Run log: ") || !strings.Contains(out, "aborted") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	logs, _ := filepath.Glob(filepath.Join(dir, "logs", "turn_post_processing_*.log"))
	if len(logs) != 1 {
		t.Fatalf("expected one run log, got %v", logs)
	}
	data, _ := os.ReadFile(logs[0])
	if !strings.Contains(string(data), "connect failed") {
		t.Fatalf("log missing connect failure:\n%s", data)
	}
}

func TestHistory(t *testing.T) {
	dir := setTestEnv(t, "https://jira.example.com")

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No outcomes recorded yet.") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	seedLedger(t, filepath.Join(dir, "turnpp.db"), "20240108",
		domain.TicketOutcome{ParentKey: "CAM-1", TicketKey: "CAM-2", Outcome: domain.OutcomeArchived, ArchivePath: "/data/CAM-1/CAM-2/Acme.zip"},
		domain.TicketOutcome{ParentKey: "CAM-1", TicketKey: "CAM-3", Outcome: domain.OutcomeCheckFailed, Detail: "pair shape"},
	)

	out, err = execute(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"TICKET", "CAM-2", "archived", "/data/CAM-1/CAM-2/Acme.zip", "CAM-3", "pair shape"} {
		if !strings.Contains(out, want) {
			t.Fatalf("history missing %q:\n%s", want, out)
		}
	}
}

func TestPurge(t *testing.T) {
	dir := setTestEnv(t, "https://jira.example.com")
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(logDir, "turn_post_processing_20200101-060000.log")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "purge")
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if !strings.Contains(out, "removed 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
}

func TestScheduleRequiresCron(t *testing.T) {
	setTestEnv(t, "https://jira.example.com")

	_, err := execute(t, "schedule", "--console=false")
	if err == nil || !strings.Contains(err.Error(), "schedule is not set") {
		t.Fatalf("expected missing schedule error, got %v", err)
	}
}
