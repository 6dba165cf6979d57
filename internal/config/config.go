package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/domain"
)

const (
	configPathEnv      = "THREAT_SCANNER_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	storeDriverEnv     = "STORE_DRIVER"
	redisAddrEnv       = "REDIS_ADDR"
	redisPasswordEnv   = "REDIS_PASSWORD"
	forwardBaseURLEnv  = "FORWARD_BASE_URL"
	forwardAPIKeyEnv   = "FORWARD_API_KEY"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv        = "LOG_LEVEL"
	opsAddrEnv         = "OPS_ADDR"
	otlpEndpointEnv    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	defaultEnvFilePath = ".env"
)

// Bounds applied during normalization.
const (
	MinIntervalMinutes     = 5
	MaxIntervalMinutes     = 720
	DefaultIntervalMinutes = 60
	MinSourceLimit         = 10
	MaxSourceLimit         = 25
	DefaultSourceLimit     = 20
	DefaultCapacity        = 30
)

// Store driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Collection    CollectionConfig   `yaml:"collection"`
	Capacity      int                `yaml:"capacity"`
	Store         StoreConfig        `yaml:"store"`
	Forwarding    ForwardingConfig   `yaml:"forwarding"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
	Tracing       TracingConfig      `yaml:"tracing"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects the slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines when cycles run.
type SchedulerConfig struct {
	IntervalMinutes       int   `yaml:"intervalMinutes"`
	HealthIntervalSeconds int   `yaml:"healthIntervalSeconds"`
	RunOnStart            *bool `yaml:"runOnStart"`
}

// Interval returns the clamped cycle interval.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// HealthInterval returns the status log period.
func (s SchedulerConfig) HealthInterval() time.Duration {
	return time.Duration(s.HealthIntervalSeconds) * time.Second
}

// StartImmediately reports whether a cycle fires as soon as the scheduler starts.
func (s SchedulerConfig) StartImmediately() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

// CollectionConfig tunes the shared fetch behaviour of collectors.
type CollectionConfig struct {
	UserAgent          string `yaml:"userAgent"`
	TimeoutSeconds     int    `yaml:"timeoutSeconds"`
	DelayMillis        int    `yaml:"delayMillis"`
	Limit              int    `yaml:"limit"`
	RenderSettleMillis int    `yaml:"renderSettleMillis"`
}

// StoreConfig selects the slot store backend.
type StoreConfig struct {
	Driver string      `yaml:"driver"`
	DSN    string      `yaml:"dsn"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig wires the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ForwardingConfig describes the downstream relay. An empty BaseURL disables forwarding.
type ForwardingConfig struct {
	BaseURL     string `yaml:"baseUrl"`
	APIKey      string `yaml:"apiKey"`
	MaxAttempts int    `yaml:"maxAttempts"`
	// RatePerSecond paces requests to the downstream API; zero means unlimited.
	RatePerSecond float64 `yaml:"ratePerSecond"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken   string `yaml:"botToken"`
	ChatID     string `yaml:"chatId"`
	DigestSize int    `yaml:"digestSize"`
}

// ServerConfig configures the ops HTTP listener. An empty Addr disables it.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig controls OTLP span export. Spans are dropped unless Enabled is set.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sampleRate"`
	ServiceName string  `yaml:"serviceName"`
}

// SourceConfig describes one upstream source and the collector kind serving it.
type SourceConfig struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	URL       string         `yaml:"url"`
	Category  string         `yaml:"category"`
	Priority  int            `yaml:"priority"`
	Format    string         `yaml:"format"`
	Community string         `yaml:"community"`
	Limit     int            `yaml:"limit"`
	Render    bool           `yaml:"render"`
	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig holds CSS selectors of html sources.
type SelectorConfig struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Date    string `yaml:"date"`
	Link    string `yaml:"link"`
}

// Load reads .env (if present), YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(defaultEnvFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read %s: %v", defaultEnvFilePath, err)
	}
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load without the .env step, reading YAML from path when it is not empty.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Store.Redis.Addr = v
	}

	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.Store.Redis.Password = v
	}

	if v := os.Getenv(forwardBaseURLEnv); v != "" {
		c.Forwarding.BaseURL = v
	}

	if v := os.Getenv(forwardAPIKeyEnv); v != "" {
		c.Forwarding.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(opsAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(otlpEndpointEnv); v != "" {
		c.Tracing.Endpoint = v
		c.Tracing.Enabled = true
	}
}

func (c *Config) normalize() {
	c.Scheduler.IntervalMinutes = clampInt(c.Scheduler.IntervalMinutes, MinIntervalMinutes, MaxIntervalMinutes, DefaultIntervalMinutes)
	if c.Scheduler.HealthIntervalSeconds <= 0 {
		c.Scheduler.HealthIntervalSeconds = 300
	}

	c.Collection.Limit = clampInt(c.Collection.Limit, MinSourceLimit, MaxSourceLimit, DefaultSourceLimit)
	if c.Collection.TimeoutSeconds <= 0 {
		c.Collection.TimeoutSeconds = 20
	}
	if c.Collection.DelayMillis < 0 {
		c.Collection.DelayMillis = 0
	}

	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}

	if c.Forwarding.RatePerSecond < 0 {
		c.Forwarding.RatePerSecond = 0
	}

	if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
		c.Tracing.SampleRate = 1
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
}

// clampInt returns def for unset values and bounds the rest to [lo, hi].
func clampInt(v, lo, hi, def int) int {
	switch {
	case v <= 0:
		return def
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// ToSources converts source entries into collector sources. Invalid entries are skipped and
// reported in the returned error; valid ones are still returned.
func (c Config) ToSources() ([]collector.Source, error) {
	sources := make([]collector.Source, 0, len(c.Sources))
	var errs []error
	for i, sc := range c.Sources {
		src, err := sc.toSource(c.Collection.Limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("source #%d %q: %w", i+1, sc.Name, err))
			continue
		}
		sources = append(sources, src)
	}
	return sources, errors.Join(errs...)
}

func (sc SourceConfig) toSource(defaultLimit int) (collector.Source, error) {
	kind := domain.SourceKind(strings.ToLower(strings.TrimSpace(sc.Kind)))
	switch kind {
	case domain.KindFeed, domain.KindAPI, domain.KindHTML, domain.KindSocial:
	default:
		return collector.Source{}, fmt.Errorf("unknown kind %q", sc.Kind)
	}
	if strings.TrimSpace(sc.Name) == "" {
		return collector.Source{}, errors.New("name is required")
	}
	if kind != domain.KindSocial && strings.TrimSpace(sc.URL) == "" {
		return collector.Source{}, errors.New("url is required")
	}

	var category domain.Category
	if sc.Category != "" {
		parsed, ok := domain.ParseCategory(sc.Category)
		if !ok {
			return collector.Source{}, fmt.Errorf("unknown category %q", sc.Category)
		}
		category = parsed
	}

	limit := defaultLimit
	if sc.Limit > 0 {
		limit = clampInt(sc.Limit, MinSourceLimit, MaxSourceLimit, defaultLimit)
	}

	return collector.Source{
		Name:      sc.Name,
		Kind:      kind,
		URL:       sc.URL,
		Category:  category,
		Priority:  sc.Priority,
		Format:    sc.Format,
		Community: sc.Community,
		Limit:     limit,
		Render:    sc.Render,
		Selectors: collector.Selectors{
			Item:    sc.Selectors.Item,
			Title:   sc.Selectors.Title,
			Summary: sc.Selectors.Summary,
			Date:    sc.Selectors.Date,
			Link:    sc.Selectors.Link,
		},
	}, nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.IntervalMinutes != 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}
	if override.Scheduler.HealthIntervalSeconds != 0 {
		base.Scheduler.HealthIntervalSeconds = override.Scheduler.HealthIntervalSeconds
	}
	if override.Scheduler.RunOnStart != nil {
		base.Scheduler.RunOnStart = override.Scheduler.RunOnStart
	}

	if override.Collection.UserAgent != "" {
		base.Collection.UserAgent = override.Collection.UserAgent
	}
	if override.Collection.TimeoutSeconds != 0 {
		base.Collection.TimeoutSeconds = override.Collection.TimeoutSeconds
	}
	if override.Collection.DelayMillis != 0 {
		base.Collection.DelayMillis = override.Collection.DelayMillis
	}
	if override.Collection.Limit != 0 {
		base.Collection.Limit = override.Collection.Limit
	}
	if override.Collection.RenderSettleMillis != 0 {
		base.Collection.RenderSettleMillis = override.Collection.RenderSettleMillis
	}

	if override.Capacity != 0 {
		base.Capacity = override.Capacity
	}

	if override.Store.Driver != "" {
		base.Store.Driver = override.Store.Driver
	}
	if override.Store.DSN != "" {
		base.Store.DSN = override.Store.DSN
	}
	if override.Store.Redis.Addr != "" {
		base.Store.Redis = override.Store.Redis
	}

	if override.Forwarding.BaseURL != "" {
		base.Forwarding.BaseURL = override.Forwarding.BaseURL
	}
	if override.Forwarding.APIKey != "" {
		base.Forwarding.APIKey = override.Forwarding.APIKey
	}
	if override.Forwarding.MaxAttempts != 0 {
		base.Forwarding.MaxAttempts = override.Forwarding.MaxAttempts
	}
	if override.Forwarding.RatePerSecond != 0 {
		base.Forwarding.RatePerSecond = override.Forwarding.RatePerSecond
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.DigestSize != 0 {
		base.Notifications.Telegram.DigestSize = override.Notifications.Telegram.DigestSize
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Tracing.Enabled {
		base.Tracing.Enabled = true
	}
	if override.Tracing.Endpoint != "" {
		base.Tracing.Endpoint = override.Tracing.Endpoint
	}
	if override.Tracing.Insecure {
		base.Tracing.Insecure = true
	}
	if override.Tracing.SampleRate != 0 {
		base.Tracing.SampleRate = override.Tracing.SampleRate
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{IntervalMinutes: DefaultIntervalMinutes, HealthIntervalSeconds: 300},
		Collection: CollectionConfig{
			UserAgent:          "ThreatScanner/1.0 (+open-source threat aggregation)",
			TimeoutSeconds:     20,
			DelayMillis:        1000,
			Limit:              DefaultSourceLimit,
			RenderSettleMillis: 1500,
		},
		Capacity: DefaultCapacity,
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis:  RedisConfig{Addr: "localhost:6379"},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: "", DigestSize: 5},
		},
		Forwarding: ForwardingConfig{RatePerSecond: 5},
		Server:     ServerConfig{Addr: ":8080"},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			SampleRate:  1,
			ServiceName: "threatscanner",
		},
		Sources: []SourceConfig{
			{
				Name:     "usgs-significant",
				Kind:     string(domain.KindAPI),
				URL:      "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_day.geojson",
				Format:   "usgs",
				Category: string(domain.CategoryNatural),
				Priority: 10,
			},
			{
				Name:     "cisa-advisories",
				Kind:     string(domain.KindFeed),
				URL:      "https://www.cisa.gov/cybersecurity-advisories/all.xml",
				Category: string(domain.CategoryCyber),
				Priority: 9,
			},
			{
				Name:     "who-news",
				Kind:     string(domain.KindFeed),
				URL:      "https://www.who.int/rss-feeds/news-english.xml",
				Category: string(domain.CategoryHealth),
				Priority: 8,
			},
			{
				Name:     "nasa-eonet",
				Kind:     string(domain.KindAPI),
				URL:      "https://eonet.gsfc.nasa.gov/api/v3/events?status=open&limit=20",
				Format:   "eonet",
				Category: string(domain.CategoryClimate),
				Priority: 7,
			},
			{
				Name:     "bbc-world",
				Kind:     string(domain.KindFeed),
				URL:      "https://feeds.bbci.co.uk/news/world/rss.xml",
				Category: string(domain.CategoryNews),
				Priority: 5,
			},
			{
				Name:     "gdelt-crisis",
				Kind:     string(domain.KindAPI),
				URL:      "https://api.gdeltproject.org/api/v2/doc/doc?query=(conflict%20OR%20crisis)&mode=artlist&format=json&maxrecords=25&sort=datedesc",
				Format:   "gdelt",
				Category: string(domain.CategoryConflict),
				Priority: 4,
			},
			{
				Name:     "reliefweb-updates",
				Kind:     string(domain.KindHTML),
				URL:      "https://reliefweb.int/updates",
				Category: string(domain.CategoryNatural),
				Priority: 3,
				Selectors: SelectorConfig{
					Item:    "article",
					Title:   "h3",
					Summary: "p",
					Date:    "time",
					Link:    "h3 a",
				},
			},
			{
				Name:      "netsec",
				Kind:      string(domain.KindSocial),
				Community: "netsec",
				Category:  string(domain.CategoryCyber),
				Priority:  2,
			},
			{
				Name:      "worldnews",
				Kind:      string(domain.KindSocial),
				Community: "worldnews",
				Priority:  1,
			},
		},
	}
}
