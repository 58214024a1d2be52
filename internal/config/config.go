// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type PlatformConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Email       string `yaml:"email"`        // login identity for credential platforms
	CookiesFile string `yaml:"cookies_file"` // token source for replay platforms
}

type Config struct {
	App struct {
		DataDir   string `yaml:"data_dir"`
		Addr      string `yaml:"addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"` // console | json
	} `yaml:"app"`

	Search struct {
		Keywords []string `yaml:"keywords"`
		Levels   []string `yaml:"levels"`
	} `yaml:"search"`

	Run struct {
		PageCap           int `yaml:"page_cap"`
		ApplyPauseSeconds int `yaml:"apply_pause_seconds"`
		PollIntervalMs    int `yaml:"poll_interval_ms"`
	} `yaml:"run"`

	Platforms map[string]PlatformConfig `yaml:"platforms"`

	EmailConfirm struct {
		Enabled  bool   `yaml:"enabled"`
		IMAPHost string `yaml:"imap_host"`
		IMAPPort int    `yaml:"imap_port"`
		Username string `yaml:"username"`
		MaxMails int    `yaml:"max_mails"`
	} `yaml:"email_confirm"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Defaults fills zero values that would otherwise disable bounded loops.
func Defaults(cfg *Config) {
	if cfg.Run.PageCap <= 0 {
		cfg.Run.PageCap = 50
	}
	if cfg.Run.PollIntervalMs <= 0 {
		cfg.Run.PollIntervalMs = 500
	}
	if cfg.EmailConfirm.MaxMails <= 0 {
		cfg.EmailConfirm.MaxMails = 50
	}
}
