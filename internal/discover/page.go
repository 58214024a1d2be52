// Package discover scans listing pages one at a time, extracting candidate
// postings and persisting only those not already known. Dedup happens per
// item, before persistence, so a mid-run interruption never loses a posting
// that was already written.
package discover

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"applybot-engine/internal/browser"
	"applybot-engine/internal/platform"
	"applybot-engine/internal/store"
)

// PageScan reports one listing page's outcome.
type PageScan struct {
	New     []store.Posting // newly persisted, in page order
	Known   int             // dedup hits, silently skipped
	Skipped int             // malformed items
	Empty   bool            // container never appeared
}

// ScanPage extracts postings from the current listing page. A container
// timeout is zero results, not an error; one malformed item never aborts
// the page.
func ScanPage(ctx context.Context, sess *browser.Session, db *sql.DB, p platform.Platform, log *slog.Logger) (PageScan, error) {
	var scan PageScan

	_, err := sess.WaitFor(ctx, p.ListContainer, p.ListTimeout)
	if errors.Is(err, browser.ErrWaitTimeout) {
		scan.Empty = true
		if p.NoResults != "" && sess.Find(p.NoResults).Length() > 0 {
			log.Debug("listing reports no results", slog.String("platform", p.Name))
		} else {
			// Could be a legitimately empty page or changed markup; record
			// which so a broken adapter is visible in the logs.
			log.Warn("listing container timeout, treating as empty page",
				slog.String("platform", p.Name),
				slog.String("url", sess.CurrentURL()))
		}
		return scan, nil
	}
	if err != nil {
		return scan, err
	}

	var items []*goquery.Selection
	sess.Find(p.Item).Each(func(_ int, it *goquery.Selection) {
		items = append(items, it)
	})

	for _, it := range items {
		posting, ok := extractItem(sess, p, it)
		if !ok {
			scan.Skipped++
			log.Debug("skipping malformed listing item", slog.String("platform", p.Name))
			continue
		}

		existing, err := store.FindPostingByURL(ctx, db, posting.URL)
		if err == nil && existing != nil {
			scan.Known++
			continue
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error("dedup lookup failed", slog.String("url", posting.URL), slog.Any("err", err))
			continue
		}

		created, err := store.CreatePosting(ctx, db, posting.URL, posting.Title, posting.Company, p.Name)
		if err != nil {
			log.Error("persist posting failed", slog.String("url", posting.URL), slog.Any("err", err))
			continue
		}
		log.Info("new posting",
			slog.String("platform", p.Name),
			slog.String("title", created.Title),
			slog.String("company", created.Company))
		scan.New = append(scan.New, *created)
	}

	return scan, nil
}

type extracted struct {
	URL     string
	Title   string
	Company string
}

func extractItem(sess *browser.Session, p platform.Platform, it *goquery.Selection) (extracted, bool) {
	link := it.Find(p.ItemLink).First()
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return extracted{}, false
	}
	abs, err := sess.ResolveURL(href)
	if err != nil {
		return extracted{}, false
	}
	if p.StripQuery {
		abs = stripQuery(abs)
	}

	title := cleanText(it.Find(p.ItemTitle).First().Text())
	company := cleanText(it.Find(p.ItemCompany).First().Text())
	if title == "" || company == "" {
		return extracted{}, false
	}

	return extracted{URL: abs, Title: title, Company: company}, true
}

// NextPage advances pagination. An absent or disabled control ends the
// current query's pages.
func NextPage(ctx context.Context, sess *browser.Session, p platform.Platform) (bool, error) {
	timeout := p.NextTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	res := sess.ClickWithin(ctx, p.NextPage, timeout)
	switch res.Outcome {
	case browser.StepCompleted:
		return true, nil
	case browser.StepNotPresent:
		return false, nil
	default:
		return false, res.Err
	}
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
