package config

import (
	"errors"
	"fmt"
	"strings"
)

func Validate(cfg Config) error {
	var errs []string

	if len(cfg.Search.Keywords) == 0 {
		errs = append(errs, "search.keywords must have at least 1 term")
	}
	for i, k := range cfg.Search.Keywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Sprintf("search.keywords[%d] cannot be empty", i))
		}
	}
	for i, l := range cfg.Search.Levels {
		if strings.TrimSpace(l) == "" {
			errs = append(errs, fmt.Sprintf("search.levels[%d] cannot be empty", i))
		}
	}

	if cfg.Run.PageCap < 0 {
		errs = append(errs, "run.page_cap must be >= 0")
	}
	if cfg.Run.ApplyPauseSeconds < 0 {
		errs = append(errs, "run.apply_pause_seconds must be >= 0")
	}

	anyEnabled := false
	for name, p := range cfg.Platforms {
		if !p.Enabled {
			continue
		}
		anyEnabled = true
		if p.Email == "" && p.CookiesFile == "" {
			errs = append(errs, fmt.Sprintf("platforms.%s needs email or cookies_file", name))
		}
	}
	if !anyEnabled {
		errs = append(errs, "no platform is enabled")
	}

	if cfg.EmailConfirm.Enabled {
		if cfg.EmailConfirm.IMAPHost == "" {
			errs = append(errs, "email_confirm.imap_host is required when enabled")
		}
		if cfg.EmailConfirm.Username == "" {
			errs = append(errs, "email_confirm.username is required when enabled")
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}
