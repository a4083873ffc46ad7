package config

import (
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Languages a monitored source can publish in. Classification always yields
// exactly one of these values.
const (
	LanguageEnglish = "English"
	LanguageSinhala = "Sinhala"
)

// Source describes one monitored news site: the domain scanned via the search
// API, the display name stored on matched articles, and the publication
// language that selects the query set. Declaration order matters because the
// classifier resolves overlapping domains by first match.
type Source struct {
	Domain    string `yaml:"domain"`
	Newspaper string `yaml:"newspaper"`
	Language  string `yaml:"language"`
}

// Queries holds the per-language search phrases swept across every source.
type Queries struct {
	English []string `yaml:"english"`
	Sinhala []string `yaml:"sinhala"`
}

// SearchConfig wires the paginated search API.
type SearchConfig struct {
	Endpoint string
	APIKey   string
	EngineID string
}

// MailConfig wires the SMTP transport for digest emails. Empty credentials
// disable sending without being an error.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	To       string
}

// ScheduleConfig defines when the daily digest job fires, as a wall-clock
// time in the configured timezone.
type ScheduleConfig struct {
	Hour     int
	Minute   int
	Timezone string
	location *time.Location
}

// NewScheduleConfig builds a schedule for the given wall-clock time in the
// named IANA timezone.
func NewScheduleConfig(hour, minute int, timezone string) (ScheduleConfig, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return ScheduleConfig{}, eris.Wrapf(err, "resolving timezone: %s", timezone)
	}

	return ScheduleConfig{Hour: hour, Minute: minute, Timezone: timezone, location: location}, nil
}

// Location returns the resolved timezone for the daily schedule.
func (s ScheduleConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// RateLimitConfig bounds per-client request rates on the HTTP server.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Config holds runtime configuration values for the Presswatch server.
type Config struct {
	DatabaseURL   string
	ServerPort    int
	LogLevel      string
	SentryDSN     string
	Environment   string
	Brand         string
	Search        SearchConfig
	Mail          MailConfig
	Schedule      ScheduleConfig
	RateLimit     RateLimitConfig
	Sources       []Source
	Queries       Queries
	ShutdownGrace time.Duration
}

const (
	defaultDatabaseURL    = "./data/presswatch.db"
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultBrand          = "Cargills"
	defaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"
	defaultSMTPHost       = "smtp.gmail.com"
	defaultSMTPPort       = 465
	defaultTimezone       = "Asia/Colombo"
	defaultDailyHour      = 10
	defaultDailyMinute    = 0
	defaultRateLimitRPS   = 5
	defaultRateLimitBurst = 10
	defaultRateLimitTTL   = 5 * time.Minute
	defaultShutdownGrace  = 10 * time.Second
)

// Load reads configuration values from environment variables, applying
// defaults where necessary, and merges the optional sources file on top of
// the built-in source list.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDatabaseURL),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getEnv("ENV", defaultEnvironment),
		Brand:       getEnv("BRAND", defaultBrand),
		Search: SearchConfig{
			Endpoint: getEnv("SEARCH_ENDPOINT", defaultSearchEndpoint),
			APIKey:   os.Getenv("SEARCH_API_KEY"),
			EngineID: os.Getenv("SEARCH_ENGINE_ID"),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", defaultSMTPHost),
			Username: os.Getenv("EMAIL_USER"),
			Password: os.Getenv("EMAIL_PASS"),
		},
		Sources:       defaultSources(),
		Queries:       defaultQueries(),
		ShutdownGrace: defaultShutdownGrace,
	}

	// The digest goes to the monitoring account itself unless overridden.
	cfg.Mail.To = getEnv("EMAIL_TO", cfg.Mail.Username)

	port, err := intFromEnv("SERVER_PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}
	cfg.ServerPort = port

	smtpPort, err := intFromEnv("SMTP_PORT", defaultSMTPPort)
	if err != nil {
		return nil, err
	}
	cfg.Mail.Port = smtpPort

	hour, err := intFromEnv("DAILY_HOUR", defaultDailyHour)
	if err != nil {
		return nil, err
	}
	if hour < 0 || hour > 23 {
		return nil, eris.Errorf("DAILY_HOUR must be between 0 and 23, got %d", hour)
	}

	minute, err := intFromEnv("DAILY_MINUTE", defaultDailyMinute)
	if err != nil {
		return nil, err
	}
	if minute < 0 || minute > 59 {
		return nil, eris.Errorf("DAILY_MINUTE must be between 0 and 59, got %d", minute)
	}

	schedule, err := NewScheduleConfig(hour, minute, getEnv("TZ", defaultTimezone))
	if err != nil {
		return nil, err
	}
	cfg.Schedule = schedule

	rps, err := intFromEnv("RATE_LIMIT_RPS", defaultRateLimitRPS)
	if err != nil {
		return nil, err
	}
	if rps <= 0 {
		return nil, eris.Errorf("RATE_LIMIT_RPS must be greater than zero, got %d", rps)
	}

	burst, err := intFromEnv("RATE_LIMIT_BURST", defaultRateLimitBurst)
	if err != nil {
		return nil, err
	}
	if burst <= 0 {
		return nil, eris.Errorf("RATE_LIMIT_BURST must be greater than zero, got %d", burst)
	}

	cfg.RateLimit = RateLimitConfig{
		RequestsPerSecond: float64(rps),
		Burst:             burst,
		ClientTTL:         defaultRateLimitTTL,
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		if err := cfg.applySourcesFile(path); err != nil {
			return nil, eris.Wrapf(err, "loading sources file: %s", path)
		}
	}

	if err := validateSources(cfg.Sources); err != nil {
		return nil, err
	}

	return cfg, nil
}

// sourcesFile is the YAML shape of the optional SOURCES_FILE override.
type sourcesFile struct {
	Brand   string   `yaml:"brand"`
	Sources []Source `yaml:"sources"`
	Queries Queries  `yaml:"queries"`
}

func (c *Config) applySourcesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "reading file")
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return eris.Wrap(err, "parsing yaml")
	}

	if file.Brand != "" {
		c.Brand = file.Brand
	}
	if len(file.Sources) > 0 {
		c.Sources = file.Sources
	}
	if len(file.Queries.English) > 0 {
		c.Queries.English = file.Queries.English
	}
	if len(file.Queries.Sinhala) > 0 {
		c.Queries.Sinhala = file.Queries.Sinhala
	}

	return nil
}

func validateSources(sources []Source) error {
	if len(sources) == 0 {
		return eris.New("at least one monitored source is required")
	}

	for _, source := range sources {
		if source.Domain == "" {
			return eris.New("source domain must not be empty")
		}
		if source.Newspaper == "" {
			return eris.Errorf("source %s has no newspaper name", source.Domain)
		}
		if source.Language != LanguageEnglish && source.Language != LanguageSinhala {
			return eris.Errorf("source %s has unsupported language %q", source.Domain, source.Language)
		}
	}

	return nil
}

// NewspaperNames returns the distinct display names of the given sources in
// alphabetical order, for filter dropdowns and the like.
func NewspaperNames(sources []Source) []string {
	seen := make(map[string]struct{}, len(sources))
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		if _, ok := seen[source.Newspaper]; ok {
			continue
		}
		seen[source.Newspaper] = struct{}{}
		names = append(names, source.Newspaper)
	}

	sort.Strings(names)
	return names
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

// defaultSources lists the monitored Sri Lankan press sites in classification
// order: English dailies first, then the Sinhala papers.
func defaultSources() []Source {
	return []Source{
		{Domain: "dailymirror.lk", Newspaper: "Daily Mirror", Language: LanguageEnglish},
		{Domain: "ft.lk", Newspaper: "Daily FT", Language: LanguageEnglish},
		{Domain: "sundayobserver.lk", Newspaper: "Sunday Observer", Language: LanguageEnglish},
		{Domain: "sundaytimes.lk", Newspaper: "Sunday Times", Language: LanguageEnglish},
		{Domain: "ceylontoday.lk", Newspaper: "Ceylon Today", Language: LanguageEnglish},
		{Domain: "themorning.lk", Newspaper: "The Morning", Language: LanguageEnglish},
		{Domain: "dailynews.lk", Newspaper: "Daily News", Language: LanguageEnglish},
		{Domain: "island.lk", Newspaper: "The Island", Language: LanguageEnglish},
		{Domain: "lankadeepa.lk", Newspaper: "Lanka Deepa", Language: LanguageSinhala},
		{Domain: "mawbima.lk", Newspaper: "Maubima", Language: LanguageSinhala},
		{Domain: "ada.lk", Newspaper: "Ada", Language: LanguageSinhala},
		{Domain: "aruna.lk", Newspaper: "Aruna", Language: LanguageSinhala},
		{Domain: "divaina.lk", Newspaper: "Divaina", Language: LanguageSinhala},
		{Domain: "dinamina.lk", Newspaper: "Dinamina", Language: LanguageSinhala},
	}
}

// defaultQueries returns the brand phrases swept per language, quoted so the
// search API matches them exactly (common misspellings included).
func defaultQueries() Queries {
	return Queries{
		English: []string{`"cargills"`, `"cargils"`},
		Sinhala: []string{`"කාගිල්ස්"`, `"කාගීල්ස්"`},
	}
}
