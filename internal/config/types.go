package config

// Config is the whole bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "4h").
// Any field can be overridden with a GATEBOT_* environment variable
// (e.g. GATEBOT_TELEGRAM_TOKEN); the file is the base layer.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Channel   ChannelConfig   `json:"channel"`
	Group     GroupConfig     `json:"group"`
	Admin     AdminConfig     `json:"admin"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Dedup     DedupConfig     `json:"dedup,omitempty"`
	Sweep     SweepConfig     `json:"sweep,omitempty"`
	Health    HealthConfig    `json:"health,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout.
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// ChannelConfig identifies the reference channel whose membership gates
// access. Username is used to build t.me post links.
type ChannelConfig struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// GroupConfig identifies the restricted group that join requests target.
type GroupConfig struct {
	ID         int64  `json:"id"`
	InviteLink string `json:"invite_link,omitempty"`
}

// AdminConfig identifies the single designated administrator.
type AdminConfig struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) or "memory"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type BroadcastConfig struct {
	// RatePerSec caps notification sends; Telegram rejects bots above
	// roughly 30 messages per second.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type DedupConfig struct {
	// Window is how long a multi-part post's group id suppresses repeats.
	Window     string `json:"window,omitempty"`
	MaxEntries int    `json:"max_entries,omitempty"`
}

type SweepConfig struct {
	// Schedule is a cron spec ("0 */4 * * *") or descriptor ("@every 4h").
	Schedule string `json:"schedule,omitempty"`
	// CallTimeout bounds each oracle/probe call during a sweep.
	CallTimeout string `json:"call_timeout,omitempty"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}
