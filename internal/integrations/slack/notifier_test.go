package slackbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

func newMockSlackAPI(t *testing.T, ok bool) (*slack.Client, *[]string) {
	t.Helper()

	var posted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		if path != "chat.postMessage" {
			t.Fatalf("unexpected slack call: %s", path)
		}
		_ = r.ParseForm()
		if got := r.Form.Get("channel"); got != "C_OPS" {
			t.Fatalf("unexpected channel: %q", got)
		}
		posted = append(posted, r.Form.Get("text"))
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C_OPS", "ts": "1.23"})
	}))
	t.Cleanup(server.Close)

	return slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/")), &posted
}

func TestNotifyPostsText(t *testing.T) {
	api, posted := newMockSlackAPI(t, true)

	n := NewNotifier(api, "C_OPS", nil)
	if err := n.Notify(context.Background(), "Turn post-processing: 2 archived"); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(*posted) != 1 || (*posted)[0] != "Turn post-processing: 2 archived" {
		t.Fatalf("unexpected posts: %#v", *posted)
	}
}

func TestNotifySlackError(t *testing.T) {
	api, _ := newMockSlackAPI(t, false)

	err := NewNotifier(api, "C_OPS", nil).Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if New(Config{}, nil) != nil {
		t.Fatal("expected nil notifier without slack config")
	}
	if New(Config{SlackBotToken: "xoxb", SlackChannel: "C1"}, nil) == nil {
		t.Fatal("expected notifier when slack is configured")
	}
}
