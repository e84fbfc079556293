package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the filter and crawl parameters.
const (
	DefaultMaxPriceUSD      = 121000
	DefaultMaxFeeARS        = 120000
	DefaultMinRooms         = 2
	DefaultMaxNewURLsPerRun = 120
	DefaultMaxSitemapFiles  = 8
	DefaultRequestDelay     = 1200 * time.Millisecond

	DefaultSitemapIndexURL = "https://www.zonaprop.com.ar/sitemaps_https.xml"
	DefaultRobotsURL       = "https://www.zonaprop.com.ar/robots.txt"
	DefaultHomeURL         = "https://www.zonaprop.com.ar/"
)

// DefaultNeighborhoods is the allow-list used when neither the config
// file nor the environment sets one. Order matters: the first zone found
// in a page's text wins.
var DefaultNeighborhoods = []string{
	"olivos", "villa urquiza", "coghlan", "colegiales",
	"belgrano", "vicente lopez", "vicente lópez",
}

// Config holds every parameter for one run. It is built once by Load
// and passed to the components; nothing reads the environment after
// startup.
type Config struct {
	SheetID string

	SitemapIndexURL string
	RobotsURL       string
	HomeURL         string

	MaxPriceUSD   int
	MaxFeeARS     int
	MinRooms      int
	Neighborhoods []string

	MaxNewURLsPerRun int
	MaxSitemapFiles  int
	RequestDelay     time.Duration

	TelegramToken  string
	TelegramChatID int64
}

// fileConfig is the optional YAML overlay for the filter criteria.
// Zero values mean "unset" and keep the defaults; the limits and the
// minimum are never legitimately zero.
type fileConfig struct {
	Filters struct {
		MaxPriceUSD   int      `yaml:"max_price_usd"`
		MaxFeeARS     int      `yaml:"max_fee_ars"`
		MinRooms      int      `yaml:"min_rooms"`
		Neighborhoods []string `yaml:"neighborhoods"`
	} `yaml:"filters"`
}

// Load builds the configuration: defaults, then the YAML file at path
// (if it exists), then environment variables. SHEET_ID is required.
func Load(path string) (*Config, error) {
	// .env is optional; system env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		SitemapIndexURL:  DefaultSitemapIndexURL,
		RobotsURL:        DefaultRobotsURL,
		HomeURL:          DefaultHomeURL,
		MaxPriceUSD:      DefaultMaxPriceUSD,
		MaxFeeARS:        DefaultMaxFeeARS,
		MinRooms:         DefaultMinRooms,
		Neighborhoods:    DefaultNeighborhoods,
		MaxNewURLsPerRun: DefaultMaxNewURLsPerRun,
		MaxSitemapFiles:  DefaultMaxSitemapFiles,
		RequestDelay:     DefaultRequestDelay,
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if cfg.SheetID == "" {
		return nil, fmt.Errorf("missing SHEET_ID environment variable")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Filters.MaxPriceUSD > 0 {
		cfg.MaxPriceUSD = fc.Filters.MaxPriceUSD
	}
	if fc.Filters.MaxFeeARS > 0 {
		cfg.MaxFeeARS = fc.Filters.MaxFeeARS
	}
	if fc.Filters.MinRooms > 0 {
		cfg.MinRooms = fc.Filters.MinRooms
	}
	if len(fc.Filters.Neighborhoods) > 0 {
		cfg.Neighborhoods = normalizeZones(fc.Filters.Neighborhoods)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.SheetID = getEnv("SHEET_ID", cfg.SheetID)
	cfg.SitemapIndexURL = getEnv("SITEMAP_INDEX_URL", cfg.SitemapIndexURL)
	cfg.RobotsURL = getEnv("ROBOTS_URL", cfg.RobotsURL)
	cfg.HomeURL = getEnv("HOME_URL", cfg.HomeURL)

	cfg.MaxPriceUSD = getEnvInt("MAX_USD", cfg.MaxPriceUSD)
	cfg.MaxFeeARS = getEnvInt("MAX_EXP", cfg.MaxFeeARS)
	cfg.MinRooms = getEnvInt("MIN_AMB", cfg.MinRooms)
	cfg.MaxNewURLsPerRun = getEnvInt("MAX_NEW_URLS_PER_RUN", cfg.MaxNewURLsPerRun)
	cfg.MaxSitemapFiles = getEnvInt("MAX_SITEMAP_FILES", cfg.MaxSitemapFiles)

	if secs := getEnvFloat("SLEEP_SEC", -1); secs >= 0 {
		cfg.RequestDelay = time.Duration(secs * float64(time.Second))
	}

	if zones := os.Getenv("ZONAS_OK"); zones != "" {
		cfg.Neighborhoods = normalizeZones(strings.Split(zones, ","))
	}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)
	if id := os.Getenv("TELEGRAM_CHAT_ID"); id != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
			cfg.TelegramChatID = parsed
		}
	}
}

// normalizeZones lower-cases and trims the allow-list, preserving the
// configured order and dropping empty entries.
func normalizeZones(zones []string) []string {
	var out []string
	for _, z := range zones {
		z = strings.ToLower(strings.TrimSpace(z))
		if z != "" {
			out = append(out, z)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return fallback
}
