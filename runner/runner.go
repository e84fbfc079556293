package runner

import (
	"fmt"
	"log"
	"strings"
	"time"

	"zonaprop-watcher/config"
	"zonaprop-watcher/filter"
	"zonaprop-watcher/ledger"
	"zonaprop-watcher/models"
	"zonaprop-watcher/notify"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fetcher retrieves listing pages and primes the HTTP session.
type Fetcher interface {
	Fetch(url string) (string, error)
	Warmup(robotsURL, homeURL string)
}

// Discoverer yields candidate listing URLs.
type Discoverer interface {
	Discover(maxSitemaps int) ([]string, error)
}

// Extractor turns page HTML into a listing record.
type Extractor interface {
	Extract(html string) models.Listing
}

// Ledger is the reconciliation surface the runner drives.
type Ledger interface {
	EnsureTables() error
	SeenURLs() (map[string]bool, error)
	UpsertAccepted(url string, l models.Listing, ts string) (ledger.Result, error)
	UpsertReview(url string, l models.Listing, ts, reason string) (ledger.Result, error)
	AppendAudit(ts string, checked, addedAccepted, addedReview, errs int) error
}

// Notifier delivers the run summary. A nil Notifier skips delivery.
type Notifier interface {
	Send(text string) error
}

var titleCaser = cases.Title(language.Spanish)

// Runner drives one complete invocation: discover, crawl, classify,
// reconcile, audit, notify.
type Runner struct {
	cfg       *config.Config
	fetcher   Fetcher
	walker    Discoverer
	extractor Extractor
	policy    *filter.Policy
	ledger    Ledger
	notifier  Notifier

	sleep func(time.Duration)
	now   func() time.Time
}

// New wires a runner from its collaborators. notifier may be nil.
func New(cfg *config.Config, fetcher Fetcher, walker Discoverer, extractor Extractor,
	policy *filter.Policy, ldg Ledger, notifier Notifier) *Runner {
	return &Runner{
		cfg:       cfg,
		fetcher:   fetcher,
		walker:    walker,
		extractor: extractor,
		policy:    policy,
		ledger:    ldg,
		notifier:  notifier,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Run executes one crawl. Per-URL failures are counted and skipped so a
// failing page never takes the run down; only ledger setup and URL
// discovery are fatal. Every completed run appends an audit row and
// sends one notification.
func (r *Runner) Run() error {
	// All rows written this run share one timestamp.
	ts := r.now().UTC().Truncate(time.Second).Format(time.RFC3339)

	r.fetcher.Warmup(r.cfg.RobotsURL, r.cfg.HomeURL)

	if err := r.ledger.EnsureTables(); err != nil {
		return fmt.Errorf("ledger setup failed: %w", err)
	}
	seen, err := r.ledger.SeenURLs()
	if err != nil {
		return fmt.Errorf("ledger setup failed: %w", err)
	}

	candidates, err := r.walker.Discover(r.cfg.MaxSitemapFiles)
	if err != nil {
		return fmt.Errorf("url discovery failed: %w", err)
	}
	log.Printf("Total URLs from sitemap sample: %d\n", len(candidates))

	newURLs := r.selectNew(candidates, seen)
	log.Printf("New URLs to check: %d\n", len(newURLs))

	var addedAccepted, addedReview, errs int
	var items []string

	for _, u := range newURLs {
		if err := r.processURL(u, ts, &addedAccepted, &addedReview, &items); err != nil {
			errs++
			log.Printf("Error on URL %s: %v\n", u, err)
		}
		r.sleep(r.cfg.RequestDelay)
	}

	if err := r.ledger.AppendAudit(ts, len(newURLs), addedAccepted, addedReview, errs); err != nil {
		log.Printf("Failed to append audit row: %v\n", err)
	}

	r.notify(items)

	log.Printf("Done. checked=%d accepted+=%d review+=%d errors=%d\n",
		len(newURLs), addedAccepted, addedReview, errs)
	return nil
}

// selectNew normalizes the candidates, drops URLs already in either
// ledger table and in-batch duplicates, and truncates to the per-run
// budget.
func (r *Runner) selectNew(candidates []string, seen map[string]bool) []string {
	var out []string
	inBatch := make(map[string]bool)

	for _, u := range candidates {
		n := normalizeURL(u)
		if n == "" || seen[n] || inBatch[n] {
			continue
		}
		inBatch[n] = true
		out = append(out, n)
		if len(out) >= r.cfg.MaxNewURLsPerRun {
			break
		}
	}
	return out
}

func (r *Runner) processURL(u, ts string, addedAccepted, addedReview *int, items *[]string) error {
	html, err := r.fetcher.Fetch(u)
	if err != nil {
		return err
	}

	rec := r.extractor.Extract(html)
	rec.URL = u

	ok, reason := r.policy.Evaluate(rec)
	if ok {
		res, err := r.ledger.UpsertAccepted(u, rec, ts)
		if err != nil {
			return err
		}
		if res == ledger.Created {
			*addedAccepted++
			*items = append(*items, formatItem(rec, u))
		}
		return nil
	}

	res, err := r.ledger.UpsertReview(u, rec, ts, reason)
	if err != nil {
		return err
	}
	if res == ledger.Created {
		*addedReview++
	}
	return nil
}

func (r *Runner) notify(items []string) {
	if r.notifier == nil {
		log.Println("Telegram not configured, skipping notification")
		return
	}
	if err := r.notifier.Send(notify.Summary(items)); err != nil {
		log.Printf("Notification failed: %v\n", err)
	}
}

// normalizeURL strips the query string; the path is the listing's
// identity in the ledger.
func normalizeURL(u string) string {
	if idx := strings.Index(u, "?"); idx != -1 {
		u = u[:idx]
	}
	return strings.TrimSpace(u)
}

// formatItem renders one accepted listing for the notification message.
func formatItem(l models.Listing, url string) string {
	rooms := "?"
	if l.Rooms != nil {
		rooms = fmt.Sprint(*l.Rooms)
	}
	price, fee := 0, 0
	if l.PriceUSD != nil {
		price = *l.PriceUSD
	}
	if l.FeesARS != nil {
		fee = *l.FeesARS
	}
	return fmt.Sprintf("- %s | %s | %s amb | USD %d | Exp %d | %s",
		titleCaser.String(l.Neighborhood), l.PropertyType, rooms, price, fee, url)
}
