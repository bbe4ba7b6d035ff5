package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Relay    RelayConfig    `json:"relay"`
	Server   ServerConfig   `json:"server,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	// Token is the bot credential. Usually supplied via TRACKRELAY_TOKEN
	// instead of the file so it stays out of version control.
	Token string `json:"token"`

	// OwnerChatID is the single chat allowed to feed the relay.
	OwnerChatID int64 `json:"owner_chat_id"`

	// Channel is the public channel name (without "@"). Used both as the
	// send target and for building t.me permalinks.
	Channel string `json:"channel"`

	// PublicURL is the externally reachable base URL the webhook is
	// registered under at startup.
	PublicURL string `json:"public_url"`
}

// RelayConfig controls the debounced relay queue.
//
// All durations are Go duration strings (e.g. "500ms", "3s").
//
// Defaults (when fields are omitted/zero):
//   - quiet_interval: "3s"
//   - pace: "1s"
type RelayConfig struct {
	QuietInterval string `json:"quiet_interval,omitempty"`
	Pace          string `json:"pace,omitempty"`
}

type ServerConfig struct {
	// Addr defaults to ":8000".
	Addr string `json:"addr,omitempty"`
	// ReadTimeout/WriteTimeout are Go duration strings.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional post-history layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./trackrelay_store", "retention": "720h" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// Retention bounds how long posted-track history is kept.
	// The prune job runs on PruneSchedule (cron spec, default "@daily").
	Retention     string `json:"retention,omitempty"`
	PruneSchedule string `json:"prune_schedule,omitempty"`
}
