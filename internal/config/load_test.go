package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `telegram:
  token: "123:abc"
  poll_timeout: 15s
channel:
  id: -100999
  username: refchannel
group:
  id: -100200
  invite_link: https://t.me/+secret
admin:
  id: 42
  username: boss
storage:
  driver: sqlite
  path: ./bot.db
  busy_timeout: 5s
logging:
  level: info
  console: true
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Channel.ID != -100999 || cfg.Channel.Username != "refchannel" {
		t.Fatalf("channel = %+v", cfg.Channel)
	}
	if cfg.Group.ID != -100200 || cfg.Admin.ID != 42 {
		t.Fatalf("group = %+v admin = %+v", cfg.Group, cfg.Admin)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed snapshot")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	body := validYAML + "webhook:\n  url: https://example.com\n"
	m := NewManager(writeConfig(t, "config.yaml", body))
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level key must be rejected")
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("GATEBOT_TELEGRAM_TOKEN", "999:env")

	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" {
		t.Fatalf("token = %q, want the env override", cfg.Telegram.Token)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{"missing token", dropLine("token:"), "telegram.token"},
		{"missing channel id", dropLine("id: -100999"), "channel.id"},
		{"missing channel username", dropLine("username: refchannel"), "channel.username"},
		{"missing group id", dropLine("id: -100200"), "group.id"},
		{"missing admin id", dropLine("id: 42"), "admin.id"},
		{"missing sqlite path", dropLine("path: ./bot.db"), "storage.path"},
		{"bad duration", func(s string) string {
			return strings.Replace(s, "poll_timeout: 15s", "poll_timeout: soon", 1)
		}, "telegram.poll_timeout"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, "config.yaml", tc.mutate(validYAML)))
			_, err := m.Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	t.Parallel()

	body := strings.Replace(validYAML, "driver: sqlite", "driver: memory", 1)
	body = dropLine("path: ./bot.db")(body)
	m := NewManager(writeConfig(t, "config.yaml", body))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func dropLine(marker string) func(string) string {
	return func(s string) string {
		lines := strings.Split(s, "\n")
		out := lines[:0]
		for _, l := range lines {
			if strings.Contains(l, marker) {
				continue
			}
			out = append(out, l)
		}
		return strings.Join(out, "\n")
	}
}
