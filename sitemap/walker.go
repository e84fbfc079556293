package sitemap

import (
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/temoto/robotstxt"
)

// ErrNoSitemaps is returned when neither the sitemap index nor the
// robots.txt fallback yields any sub-sitemap.
var ErrNoSitemaps = errors.New("no sitemaps found")

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type docKind string

const (
	kindIndex   docKind = "index"
	kindURLSet  docKind = "urlset"
	kindUnknown docKind = "unknown"
)

// Fetcher retrieves one document by URL.
type Fetcher interface {
	Fetch(url string) (string, error)
}

// Walker discovers listing page URLs through the portal's sitemaps.
type Walker struct {
	fetcher   Fetcher
	indexURL  string
	robotsURL string

	sleep func(time.Duration)
}

// NewWalker creates a walker using fetcher for every document fetch.
func NewWalker(fetcher Fetcher, indexURL, robotsURL string) *Walker {
	return &Walker{
		fetcher:   fetcher,
		indexURL:  indexURL,
		robotsURL: robotsURL,
		sleep:     time.Sleep,
	}
}

// Discover returns the sorted, deduplicated set of page URLs reachable
// through at most maxSitemaps sub-sitemaps. The primary path is the
// sitemap index; if it cannot be fetched or is not an index document,
// the Sitemap: directives from robots.txt are used instead.
func (w *Walker) Discover(maxSitemaps int) ([]string, error) {
	if sitemaps := w.fromIndex(maxSitemaps); len(sitemaps) > 0 {
		return w.collect(sitemaps), nil
	}

	sitemaps, err := w.fromRobots(maxSitemaps)
	if err != nil {
		return nil, err
	}
	return w.collect(sitemaps), nil
}

// fromIndex returns the child sitemap locations of the index document,
// or nil when the index path does not apply.
func (w *Walker) fromIndex(maxSitemaps int) []string {
	xml, err := w.fetcher.Fetch(w.indexURL)
	if err != nil {
		log.Printf("Sitemap index fetch failed: %v\n", err)
		return nil
	}

	kind, locs := parseSitemap(xml)
	if kind != kindIndex {
		return nil
	}

	// Cheap filter against decoy entries in the index.
	var candidates []string
	for _, loc := range locs {
		if strings.Contains(strings.ToLower(loc), "sitemap") {
			candidates = append(candidates, loc)
		}
	}
	if len(candidates) > maxSitemaps {
		candidates = candidates[:maxSitemaps]
	}
	return candidates
}

func (w *Walker) fromRobots(maxSitemaps int) ([]string, error) {
	body, err := w.fetcher.Fetch(w.robotsURL)
	if err != nil {
		return nil, err
	}

	robots, err := robotstxt.FromString(body)
	if err != nil || len(robots.Sitemaps) == 0 {
		return nil, ErrNoSitemaps
	}

	sitemaps := robots.Sitemaps
	if len(sitemaps) > maxSitemaps {
		sitemaps = sitemaps[:maxSitemaps]
	}
	return sitemaps, nil
}

// collect fetches every sub-sitemap and unions the page URLs of those
// that parse as urlset documents. Fetch or parse failures skip the
// sitemap, they never abort discovery.
func (w *Walker) collect(sitemaps []string) []string {
	set := make(map[string]bool)
	for _, sm := range sitemaps {
		xml, err := w.fetcher.Fetch(sm)
		if err != nil {
			log.Printf("Sitemap fetch failed: %s: %v\n", sm, err)
			w.sleep(time.Second)
			continue
		}
		if kind, urls := parseSitemap(xml); kind == kindURLSet {
			for _, u := range urls {
				set[u] = true
			}
		}
		w.sleep(time.Second)
	}

	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// parseSitemap classifies a sitemap document by the suffix of its root
// element and returns the trimmed <loc> values. Documents outside the
// sitemap namespace, or with an unrecognized root, yield nothing.
func parseSitemap(xml string) (docKind, []string) {
	doc, err := xmlquery.Parse(strings.NewReader(xml))
	if err != nil {
		return kindUnknown, nil
	}

	var root *xmlquery.Node
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			root = n
			break
		}
	}
	if root == nil || root.NamespaceURI != sitemapNS {
		return kindUnknown, nil
	}

	switch {
	case strings.HasSuffix(root.Data, "sitemapindex"):
		return kindIndex, locValues(root, "sitemap")
	case strings.HasSuffix(root.Data, "urlset"):
		return kindURLSet, locValues(root, "url")
	}
	return kindUnknown, nil
}

// locValues collects the trimmed <loc> values under root's child
// elements named child. Matching is by local name (Node.Data carries
// the name without its prefix), so prefixed documents (<sm:sitemap>)
// read the same as unprefixed ones.
func locValues(root *xmlquery.Node, child string) []string {
	var out []string
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode || n.Data != child {
			continue
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode || c.Data != "loc" {
				continue
			}
			if loc := strings.TrimSpace(c.InnerText()); loc != "" {
				out = append(out, loc)
			}
		}
	}
	return out
}
