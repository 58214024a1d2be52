// Package emailconfirm runs an optional post-run pass over the inbox,
// matching "application received" mails to the run's attempts. It only
// annotates notes; statuses are owned by the workflow.
package emailconfirm

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"applybot-engine/internal/platform"
	"applybot-engine/internal/store"
)

type Config struct {
	Addr     string // host:port
	Host     string // for TLS server name
	Username string
	Password string
	MaxMails int
}

// Check scans unseen mail received since the run started and appends a
// confirmation note to each attempt whose company shows up in a matching
// subject. Mail problems are reported but never affect the run result.
func Check(ctx context.Context, db *sql.DB, cfg Config, platforms []platform.Platform, since time.Time, log *slog.Logger) (int, error) {
	refs, err := store.AttemptsSince(ctx, db, since)
	if err != nil {
		return 0, fmt.Errorf("load run attempts: %w", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	c, err := dialAndLogin(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = c.Close() }()

	if _, err := c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return 0, fmt.Errorf("imap select inbox: %w", err)
	}

	msgs, err := fetchUnseenSince(c, since, cfg.MaxMails)
	if err != nil {
		return 0, err
	}

	senders := confirmSenders(platforms)

	matched := 0
	for _, m := range msgs {
		if !senders[senderDomain(m.from)] {
			continue
		}
		subject := strings.ToLower(m.subject)
		for _, ref := range refs {
			company := strings.ToLower(strings.TrimSpace(ref.Company))
			if company == "" || !strings.Contains(subject, company) {
				continue
			}
			note := fmt.Sprintf("confirmation email received %s (%q)",
				m.date.Format("2006-01-02"), m.subject)
			if err := store.AppendAttemptNote(ctx, db, ref.AttemptID, note); err != nil {
				log.Error("annotate attempt failed", slog.Int64("attempt", ref.AttemptID), slog.Any("err", err))
				continue
			}
			matched++
			break
		}
	}

	log.Info("confirmation pass done", slog.Int("mails", len(msgs)), slog.Int("matched", matched))
	return matched, nil
}

type mailHead struct {
	from    string
	subject string
	date    time.Time
}

func dialAndLogin(ctx context.Context, cfg Config) (*imapclient.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}

	c, err := imapclient.DialTLS(cfg.Addr, &imapclient.Options{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.Host,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func fetchUnseenSince(c *imapclient.Client, since time.Time, max int) ([]mailHead, error) {
	if max <= 0 {
		max = 50
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since,
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []mailHead
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil || buf.Envelope == nil {
			continue
		}
		h := mailHead{
			subject: buf.Envelope.Subject,
			date:    buf.InternalDate,
		}
		if len(buf.Envelope.From) > 0 {
			h.from = buf.Envelope.From[0].Addr()
		}
		out = append(out, h)
	}
	return out, nil
}

func confirmSenders(platforms []platform.Platform) map[string]bool {
	m := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		if p.ConfirmMailFrom != "" {
			m[strings.ToLower(p.ConfirmMailFrom)] = true
		}
	}
	return m
}

func senderDomain(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	dom := strings.ToLower(addr[i+1:])
	// strip subdomains like mail.gupy.io down to the registered zone
	parts := strings.Split(dom, ".")
	if len(parts) > 2 {
		dom = strings.Join(parts[len(parts)-2:], ".")
	}
	return dom
}
