package fetcher

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// ErrExhausted is returned once every fetch attempt has failed.
var ErrExhausted = errors.New("fetch attempts exhausted")

const maxAttempts = 6

// browserHeaders is the fixed identity sent with every request. The
// portal serves different content (or a block page) to clients that do
// not look like a browser.
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/121.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "es-AR,es;q=0.9,en;q=0.8",
	"Referer":                   "https://www.zonaprop.com.ar/",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Client fetches pages with retries and backoff. A single cookie jar is
// shared across all requests so warm-up cookies survive into the crawl.
type Client struct {
	http *http.Client

	// Injectable for tests.
	sleep  func(time.Duration)
	jitter func(min, max float64) float64
}

// NewClient creates a fetching client with a fresh cookie session.
func NewClient() *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: 25 * time.Second,
		},
		sleep: time.Sleep,
		jitter: func(min, max float64) float64 {
			return min + rand.Float64()*(max-min)
		},
	}
}

// Fetch GETs url and returns the response body as text. Responses that
// signal blocking (403/429) back off longer than transient failures;
// after maxAttempts the last failure reason is reported via
// ErrExhausted.
func (c *Client) Fetch(url string) (string, error) {
	var last string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, status, err := c.get(url)
		if err != nil {
			last = err.Error()
			c.sleep(backoff(attempt, false) + c.jitterDelay(false))
			continue
		}

		log.Printf("GET %s -> %d\n", url, status)

		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			last = fmt.Sprintf("HTTP %d", status)
			c.sleep(backoff(attempt, true) + c.jitterDelay(true))
			continue
		}
		if status < 200 || status > 299 {
			last = fmt.Sprintf("HTTP %d", status)
			c.sleep(backoff(attempt, false) + c.jitterDelay(false))
			continue
		}

		return body, nil
	}

	return "", fmt.Errorf("%w: %s (last: %s)", ErrExhausted, url, last)
}

// Warmup primes the session by hitting robots.txt and the home page.
// Failures are logged and tolerated; the crawl proceeds either way.
func (c *Client) Warmup(robotsURL, homeURL string) {
	if _, err := c.Fetch(robotsURL); err != nil {
		log.Printf("Warmup robots failed: %v\n", err)
	}
	c.sleep(time.Second)

	if _, err := c.Fetch(homeURL); err != nil {
		log.Printf("Warmup homepage failed: %v\n", err)
	}
	c.sleep(time.Second)
}

func (c *Client) get(url string) (string, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// backoff is the deterministic part of the retry delay: blocked
// responses wait 5s per attempt, everything else 2s per attempt.
func backoff(attempt int, blocked bool) time.Duration {
	base := 2
	if blocked {
		base = 5
	}
	return time.Duration(base*attempt) * time.Second
}

func (c *Client) jitterDelay(blocked bool) time.Duration {
	var secs float64
	if blocked {
		secs = c.jitter(0.2, 1.8)
	} else {
		secs = c.jitter(0.2, 1.0)
	}
	return time.Duration(secs * float64(time.Second))
}
