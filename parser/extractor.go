package parser

import (
	"regexp"
	"strconv"
	"strings"

	"zonaprop-watcher/models"

	"github.com/PuerkitoBio/goquery"
)

const maxTitleLen = 180

var (
	roomsRe    = regexp.MustCompile(`(\d+)\s+ambiente`)
	feesRe     = regexp.MustCompile(`expensas\s*\$?\s*([\d.,]+)`)
	priceUSRe  = regexp.MustCompile(`u\$s\s*([\d.,]+)`)
	priceUSDRe = regexp.MustCompile(`usd\s*([\d.,]+)`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// outdoorKeywords mark a balcony, patio or terrace mention.
var outdoorKeywords = []string{"balcón", "balcon", "patio", "terraza"}

// Extractor turns rendered listing pages into structured records.
type Extractor struct {
	// neighborhoods is an ordered priority list: the first entry found
	// as a substring of the page text is recorded.
	neighborhoods []string
}

// NewExtractor creates an extractor with the given neighborhood
// allow-list (already lower-cased, priority order preserved).
func NewExtractor(neighborhoods []string) *Extractor {
	return &Extractor{neighborhoods: neighborhoods}
}

// Extract pulls listing attributes out of an HTML page. It never fails:
// fields that cannot be detected stay absent and the policy layer
// decides what that means.
func (e *Extractor) Extract(html string) models.Listing {
	var listing models.Listing

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return listing
	}

	listing.Title = truncate(strings.TrimSpace(doc.Find("title").First().Text()), maxTitleLen)

	text := renderText(doc)

	listing.Rooms = matchInt(roomsRe, text)
	listing.FeesARS = matchAmount(feesRe, text)
	listing.PriceUSD = matchAmount(priceUSRe, text)
	if listing.PriceUSD == nil {
		listing.PriceUSD = matchAmount(priceUSDRe, text)
	}

	for _, zone := range e.neighborhoods {
		if strings.Contains(text, zone) {
			listing.Neighborhood = zone
			break
		}
	}

	listing.PropertyType = models.TypeApartment
	if strings.Contains(" "+text+" ", " ph ") {
		listing.PropertyType = models.TypePH
	}

	for _, kw := range outdoorKeywords {
		if strings.Contains(text, kw) {
			listing.HasOutdoorSpace = true
			break
		}
	}

	return listing
}

// renderText flattens the document into one lower-cased line of visible
// text with single spaces, the form the field patterns match against.
func renderText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	text := doc.Text()
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// matchInt returns the first captured group of re parsed as an integer.
func matchInt(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// matchAmount parses a captured amount after stripping thousands and
// decimal separators. Anything non-numeric after stripping is
// discarded, the field stays absent.
func matchAmount(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	s := strings.NewReplacer(".", "", ",", "").Replace(m[1])
	n, err := strconv.Atoi(s)
	if err != nil || s == "" {
		return nil
	}
	return &n
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
