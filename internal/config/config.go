package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// Config holds all application configuration.
type Config struct {
	DataDir    string           `toml:"data_dir"`
	Cache      CacheConfig      `toml:"cache"`
	Ingest     IngestConfig     `toml:"ingest"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Cluster    ClusterConfig    `toml:"cluster"`
	Importance ImportanceConfig `toml:"importance"`
	Summary    SummaryConfig    `toml:"summary"`
	AI         AIConfig         `toml:"ai"`
	Retry      RetryConfig      `toml:"retry"`
	Publish    PublishConfig    `toml:"publish"`
	Server     ServerConfig     `toml:"server"`
	Sources    []models.Source  `toml:"sources"`
}

// DefaultConfigPath is where the config file lives when --config is not
// given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "spectrum", "config.toml")
}

// DefaultDataDir holds the SQLite database and published artifacts when
// data_dir is not set.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "spectrum")
}

// DatabasePath is the SQLite file backing the cache and run history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "spectrum.db")
}

// PublishDir is the artifact directory. Relative paths are resolved
// against the data directory.
func (c *Config) PublishDir() string {
	if filepath.IsAbs(c.Publish.Dir) {
		return c.Publish.Dir
	}
	return filepath.Join(c.DataDir, c.Publish.Dir)
}

// CacheConfig selects the cache backend and entry lifetimes.
type CacheConfig struct {
	Backend         string `toml:"backend"` // "sqlite" | "redis" | "memory"
	TTLHours        int    `toml:"ttl_hours"`
	SummaryTTLHours int    `toml:"summary_ttl_hours"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	RedisPrefix     string `toml:"redis_prefix"`
}

// TTL is the lifetime of extracted text entries.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

// SummaryTTL is the lifetime of summary and rating entries.
func (c CacheConfig) SummaryTTL() time.Duration {
	return time.Duration(c.SummaryTTLHours) * time.Hour
}

// IngestConfig holds feed fetching and extraction settings.
type IngestConfig struct {
	Workers            int    `toml:"workers"`
	FetchCap           int    `toml:"fetch_cap"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	RateLimitMS        int    `toml:"rate_limit_ms"`
	MaxTextChars       int    `toml:"max_text_chars"`
	MinChars           int    `toml:"min_chars"`
	MinUsableChars     int    `toml:"min_usable_chars"`
	ExcerptChars       int    `toml:"excerpt_chars"`
	UserAgent          string `toml:"user_agent"`
}

// EmbeddingConfig holds external embedding settings.
type EmbeddingConfig struct {
	Provider  string `toml:"provider"` // "none" | "openai" | "cohere"
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxItems  int    `toml:"max_items"`
	BatchSize int    `toml:"batch_size"`
	Overflow  string `toml:"overflow"` // "demote" | "exclude"
}

// ClusterConfig holds clustering thresholds.
type ClusterConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	TightenThreshold    float64 `toml:"tighten_threshold"`
	MinClusterSize      int     `toml:"min_cluster_size"`
}

// ImportanceConfig holds scoring settings.
type ImportanceConfig struct {
	Threshold       float64 `toml:"threshold"`
	MinAnyCriterion float64 `toml:"min_any_criterion"`
	LLMTopN         int     `toml:"llm_top_n"`
	MaxCandidates   int     `toml:"max_candidates"`
	UseLLM          bool    `toml:"use_llm"`
}

// SummaryConfig holds summarization settings.
type SummaryConfig struct {
	LLMTopN        int `toml:"llm_top_n"`
	MaxInputChars  int `toml:"max_input_chars"`
	MaxRepsPerLean int `toml:"max_reps_per_lean"`
}

// AIConfig holds LLM provider settings.
type AIConfig struct {
	Provider       string `toml:"provider"` // "openai" | "anthropic" | "none"
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Enabled reports whether LLM calls can be made.
func (c AIConfig) Enabled() bool { return c.Provider != "none" && c.APIKey != "" }

// RetryConfig holds the backoff policy for external calls.
type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	BaseDelayMS int     `toml:"base_delay_ms"`
	Multiplier  float64 `toml:"multiplier"`
	Jitter      float64 `toml:"jitter"`
}

// PublishConfig holds artifact output settings.
type PublishConfig struct {
	Dir          string `toml:"dir"`
	MaxFeedItems int    `toml:"max_feed_items"`
	FeedLink     string `toml:"feed_link"`
	S3Bucket     string `toml:"s3_bucket"`
	S3Prefix     string `toml:"s3_prefix"`
	S3Region     string `toml:"s3_region"`
	S3Profile    string `toml:"s3_profile"`
	S3Endpoint   string `toml:"s3_endpoint"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int `toml:"port"`
	CacheSeconds int `toml:"cache_seconds"`
}

const defaultConfigContent = `# data_dir = ""                   # Defaults to the XDG data directory

[cache]
backend = "sqlite"                # "sqlite", "redis" or "memory"
ttl_hours = 24
summary_ttl_hours = 168
redis_addr = "localhost:6379"     # Used when backend = "redis" (or set REDIS_ADDR)

[ingest]
workers = 8
fetch_cap = 40
http_timeout_seconds = 15
rate_limit_ms = 500
max_text_chars = 5000

[embedding]
provider = "none"                 # "none", "openai" or "cohere"
model = "text-embedding-3-small"
max_items = 200
batch_size = 32
overflow = "demote"               # "demote" or "exclude"

[cluster]
similarity_threshold = 0.6
tighten_threshold = 0.45
min_cluster_size = 2

[importance]
threshold = 6.0
llm_top_n = 10
max_candidates = 25
use_llm = true

[summary]
llm_top_n = 10
max_input_chars = 4000
max_reps_per_lean = 5

[ai]
provider = "openai"               # "openai", "anthropic" or "none"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "gpt-4o-mini"
timeout_seconds = 60

[retry]
max_attempts = 3
base_delay_ms = 1000
multiplier = 2.0
jitter = 0.2

[publish]
dir = "public"                    # Relative paths live under data_dir
max_feed_items = 20
feed_link = "http://example.com/feed.xml"

[server]
port = 8080
cache_seconds = 300

# Center
[[sources]]
name = "AP News"
url = "https://apnews.com/hub/ap-top-news?output=1"
lean = "center"

[[sources]]
name = "BBC"
url = "https://feeds.bbci.co.uk/news/rss.xml"
lean = "center"

# Left
[[sources]]
name = "NPR"
url = "https://feeds.npr.org/1001/rss.xml"
lean = "left"

[[sources]]
name = "The Guardian"
url = "https://www.theguardian.com/world/rss"
lean = "left"

[[sources]]
name = "HuffPost"
url = "https://www.huffpost.com/section/front-page/feed"
lean = "left"

# Right
[[sources]]
name = "Fox News"
url = "https://moxie.foxnews.com/google-publisher/latest.xml"
lean = "right"

[[sources]]
name = "Daily Wire"
url = "https://www.dailywire.com/feeds/rss.xml"
lean = "right"

# Tech and business
[[sources]]
name = "TechCrunch"
url = "https://techcrunch.com/feed/"
lean = "center"

[[sources]]
name = "Ars Technica"
url = "https://feeds.arstechnica.com/arstechnica/index"
lean = "center"
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(string(data))
}

// Parse decodes TOML content and applies defaults, environment overrides
// and validation.
func Parse(content string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// A missing bool decodes as false; only an explicit value disables it.
	if !md.IsDefined("importance", "use_llm") {
		cfg.Importance.UseLLM = true
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration of a freshly created config file,
// without environment overrides.
func Default() *Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigContent, &cfg); err != nil {
		panic(fmt.Sprintf("default config does not parse: %v", err))
	}
	applyDefaults(&cfg)
	return &cfg
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "port = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	positive := []struct {
		section, key string
		value        int
	}{
		{"cache", "ttl_hours", cfg.Cache.TTLHours},
		{"ingest", "workers", cfg.Ingest.Workers},
		{"ingest", "fetch_cap", cfg.Ingest.FetchCap},
		{"ingest", "max_text_chars", cfg.Ingest.MaxTextChars},
		{"embedding", "max_items", cfg.Embedding.MaxItems},
		{"embedding", "batch_size", cfg.Embedding.BatchSize},
		{"cluster", "min_cluster_size", cfg.Cluster.MinClusterSize},
		{"summary", "max_input_chars", cfg.Summary.MaxInputChars},
		{"retry", "max_attempts", cfg.Retry.MaxAttempts},
	}
	for _, p := range positive {
		if md.IsDefined(p.section, p.key) && p.value < 1 {
			return fmt.Errorf("invalid %s.%s %d: must be >= 1", p.section, p.key, p.value)
		}
	}
	if md.IsDefined("cluster", "similarity_threshold") && cfg.Cluster.SimilarityThreshold <= 0 {
		return fmt.Errorf("invalid cluster.similarity_threshold %g: must be > 0", cfg.Cluster.SimilarityThreshold)
	}
	if md.IsDefined("importance", "threshold") && cfg.Importance.Threshold <= 0 {
		return fmt.Errorf("invalid importance.threshold %g: must be > 0", cfg.Importance.Threshold)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "sqlite"
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Cache.SummaryTTLHours == 0 {
		cfg.Cache.SummaryTTLHours = 168
	}
	if cfg.Cache.RedisPrefix == "" {
		cfg.Cache.RedisPrefix = "spectrum:"
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 8
	}
	if cfg.Ingest.FetchCap == 0 {
		cfg.Ingest.FetchCap = 40
	}
	if cfg.Ingest.HTTPTimeoutSeconds == 0 {
		cfg.Ingest.HTTPTimeoutSeconds = 15
	}
	if cfg.Ingest.MaxTextChars == 0 {
		cfg.Ingest.MaxTextChars = 5000
	}
	if cfg.Ingest.MinChars == 0 {
		cfg.Ingest.MinChars = 200
	}
	if cfg.Ingest.MinUsableChars == 0 {
		cfg.Ingest.MinUsableChars = 20
	}
	if cfg.Ingest.ExcerptChars == 0 {
		cfg.Ingest.ExcerptChars = 600
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "none"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.MaxItems == 0 {
		cfg.Embedding.MaxItems = 200
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Overflow == "" {
		cfg.Embedding.Overflow = "demote"
	}

	if cfg.Cluster.SimilarityThreshold == 0 {
		cfg.Cluster.SimilarityThreshold = 0.6
	}
	if cfg.Cluster.TightenThreshold == 0 {
		cfg.Cluster.TightenThreshold = 0.45
	}
	if cfg.Cluster.MinClusterSize == 0 {
		cfg.Cluster.MinClusterSize = 2
	}

	if cfg.Importance.Threshold == 0 {
		cfg.Importance.Threshold = 6.0
	}
	if cfg.Importance.LLMTopN == 0 {
		cfg.Importance.LLMTopN = 10
	}
	if cfg.Importance.MaxCandidates == 0 {
		cfg.Importance.MaxCandidates = 25
	}

	if cfg.Summary.LLMTopN == 0 {
		cfg.Summary.LLMTopN = 10
	}
	if cfg.Summary.MaxInputChars == 0 {
		cfg.Summary.MaxInputChars = 4000
	}
	if cfg.Summary.MaxRepsPerLean == 0 {
		cfg.Summary.MaxRepsPerLean = 5
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "anthropic":
			cfg.AI.Model = "claude-haiku-4-5"
		default:
			cfg.AI.Model = "gpt-4o-mini"
		}
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMS == 0 {
		cfg.Retry.BaseDelayMS = 1000
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}

	if cfg.Publish.Dir == "" {
		cfg.Publish.Dir = "public"
	}
	if cfg.Publish.MaxFeedItems == 0 {
		cfg.Publish.MaxFeedItems = 20
	}
	if cfg.Publish.FeedLink == "" {
		cfg.Publish.FeedLink = "http://example.com/feed.xml"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY (when provider is "anthropic")
//  3. OPENAI_API_KEY (when provider is "openai")
//
// embedding.api_key falls back to COHERE_API_KEY or OPENAI_API_KEY for the
// matching provider when the file leaves it empty.
func applyEnvOverrides(cfg *Config) {
	// Apply provider-specific env var first (lower priority).
	switch cfg.AI.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	}

	// AI_API_KEY overrides everything (highest priority).
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		cfg.AI.Model = v
	}

	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "cohere":
			cfg.Embedding.APIKey = os.Getenv("COHERE_API_KEY")
		case "openai":
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RedisDB = n
		} else {
			slog.Warn("ignoring invalid REDIS_DB", "value", v)
		}
	}
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai", "none":
		// valid
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\", \"openai\" or \"none\"", cfg.AI.Provider)
	}

	switch cfg.Embedding.Provider {
	case "none", "openai", "cohere":
	default:
		return fmt.Errorf("invalid embedding.provider %q: must be \"none\", \"openai\" or \"cohere\"", cfg.Embedding.Provider)
	}

	switch cfg.Embedding.Overflow {
	case "demote", "exclude":
	default:
		return fmt.Errorf("invalid embedding.overflow %q: must be \"demote\" or \"exclude\"", cfg.Embedding.Overflow)
	}

	switch cfg.Cache.Backend {
	case "sqlite", "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return errors.New("cache.backend is \"redis\" but cache.redis_addr is empty")
		}
	default:
		return fmt.Errorf("invalid cache.backend %q: must be \"sqlite\", \"redis\" or \"memory\"", cfg.Cache.Backend)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	if t := cfg.Cluster.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("invalid cluster.similarity_threshold %g: must be in (0, 1]", t)
	}
	if t := cfg.Cluster.TightenThreshold; t < 0 || t > 1 {
		return fmt.Errorf("invalid cluster.tighten_threshold %g: must be in [0, 1]", t)
	}
	if t := cfg.Importance.Threshold; t <= 0 || t > 10 {
		return fmt.Errorf("invalid importance.threshold %g: must be in (0, 10]", t)
	}
	if m := cfg.Importance.MinAnyCriterion; m < 0 || m > 10 {
		return fmt.Errorf("invalid importance.min_any_criterion %g: must be in [0, 10]", m)
	}
	if j := cfg.Retry.Jitter; j < 0 || j > 1 {
		return fmt.Errorf("invalid retry.jitter %g: must be in [0, 1]", j)
	}

	if len(cfg.Sources) == 0 {
		return errors.New("no [[sources]] configured")
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for i, s := range cfg.Sources {
		if s.Name == "" || s.FeedURL == "" {
			return fmt.Errorf("sources[%d]: name and url are required", i)
		}
		if !s.Lean.Valid() {
			return fmt.Errorf("source %q: invalid lean %q: must be left, center or right", s.Name, s.Lean)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}

	if cfg.AI.Provider != "none" && cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via AI_API_KEY environment variable; local summaries only")
	}
	if cfg.Embedding.Provider != "none" && cfg.Embedding.APIKey == "" {
		slog.Warn("embedding.api_key is empty: clustering will use TF-IDF", "provider", cfg.Embedding.Provider)
	}

	return nil
}
