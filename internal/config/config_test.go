package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// writeTestConfig is a helper that writes a TOML config file to a temp directory
// and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

// oneSource is the smallest valid source list.
const oneSource = `
[[sources]]
name = "NPR"
url = "https://feeds.npr.org/1001/rss.xml"
lean = "left"
`

// clearEnv unsets every variable applyEnvOverrides reads, so a developer's
// shell does not leak into the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "COHERE_API_KEY",
		"MODEL_NAME", "EMBEDDING_MODEL", "REDIS_ADDR", "REDIS_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	content := `
data_dir = "/var/lib/spectrum"

[cache]
backend = "redis"
ttl_hours = 12
redis_addr = "cache:6379"

[ingest]
workers = 4
fetch_cap = 10

[embedding]
provider = "cohere"
api_key = "co-key"
model = "embed-english-v3.0"
overflow = "exclude"

[cluster]
similarity_threshold = 0.5
tighten_threshold = 0.4
min_cluster_size = 3

[importance]
threshold = 7.0
min_any_criterion = 2.0
use_llm = false

[ai]
provider = "anthropic"
api_key = "sk-test-key-123"

[publish]
dir = "/srv/www"
s3_bucket = "news-artifacts"

[server]
port = 9090
` + oneSource
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.DataDir != "/var/lib/spectrum" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTLHours != 12 || cfg.Cache.RedisAddr != "cache:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Ingest.Workers != 4 || cfg.Ingest.FetchCap != 10 {
		t.Errorf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Embedding.Provider != "cohere" || cfg.Embedding.Model != "embed-english-v3.0" || cfg.Embedding.Overflow != "exclude" {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.Cluster.SimilarityThreshold != 0.5 || cfg.Cluster.TightenThreshold != 0.4 || cfg.Cluster.MinClusterSize != 3 {
		t.Errorf("Cluster = %+v", cfg.Cluster)
	}
	if cfg.Importance.Threshold != 7.0 || cfg.Importance.MinAnyCriterion != 2.0 || cfg.Importance.UseLLM {
		t.Errorf("Importance = %+v", cfg.Importance)
	}

	// Model follows the provider when unset.
	if cfg.AI.Provider != "anthropic" || cfg.AI.Model != "claude-haiku-4-5" {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if !cfg.AI.Enabled() {
		t.Error("AI.Enabled() = false, want true")
	}
	if cfg.Publish.Dir != "/srv/www" || cfg.Publish.S3Bucket != "news-artifacts" {
		t.Errorf("Publish = %+v", cfg.Publish)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if len(cfg.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1", len(cfg.Sources))
	}
	want := models.Source{Name: "NPR", FeedURL: "https://feeds.npr.org/1001/rss.xml", Lean: models.LeanLeft}
	if cfg.Sources[0] != want {
		t.Errorf("Sources[0] = %+v, want %+v", cfg.Sources[0], want)
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	// File should have been created.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}

	if len(cfg.Sources) != 9 {
		t.Errorf("len(Sources) = %d, want the 9 default outlets", len(cfg.Sources))
	}
	leans := map[models.Lean]int{}
	for _, s := range cfg.Sources {
		leans[s.Lean]++
	}
	if leans[models.LeanLeft] != 3 || leans[models.LeanCenter] != 4 || leans[models.LeanRight] != 2 {
		t.Errorf("lean distribution = %v", leans)
	}
	if cfg.AI.Enabled() {
		t.Error("AI.Enabled() = true without an API key")
	}
	if !cfg.Importance.UseLLM {
		t.Error("Importance.UseLLM = false, want true")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearEnv(t)
	path := writeTestConfig(t, oneSource)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"Cache.Backend", cfg.Cache.Backend, "sqlite"},
		{"Cache.TTLHours", cfg.Cache.TTLHours, 24},
		{"Cache.SummaryTTLHours", cfg.Cache.SummaryTTLHours, 168},
		{"Ingest.FetchCap", cfg.Ingest.FetchCap, 40},
		{"Ingest.MaxTextChars", cfg.Ingest.MaxTextChars, 5000},
		{"Ingest.ExcerptChars", cfg.Ingest.ExcerptChars, 600},
		{"Embedding.Provider", cfg.Embedding.Provider, "none"},
		{"Embedding.MaxItems", cfg.Embedding.MaxItems, 200},
		{"Embedding.BatchSize", cfg.Embedding.BatchSize, 32},
		{"Embedding.Overflow", cfg.Embedding.Overflow, "demote"},
		{"Cluster.SimilarityThreshold", cfg.Cluster.SimilarityThreshold, 0.6},
		{"Cluster.TightenThreshold", cfg.Cluster.TightenThreshold, 0.45},
		{"Cluster.MinClusterSize", cfg.Cluster.MinClusterSize, 2},
		{"Importance.Threshold", cfg.Importance.Threshold, 6.0},
		{"Importance.LLMTopN", cfg.Importance.LLMTopN, 10},
		{"Importance.MaxCandidates", cfg.Importance.MaxCandidates, 25},
		{"Importance.UseLLM", cfg.Importance.UseLLM, true},
		{"Summary.LLMTopN", cfg.Summary.LLMTopN, 10},
		{"Summary.MaxInputChars", cfg.Summary.MaxInputChars, 4000},
		{"Summary.MaxRepsPerLean", cfg.Summary.MaxRepsPerLean, 5},
		{"AI.Provider", cfg.AI.Provider, "openai"},
		{"AI.Model", cfg.AI.Model, "gpt-4o-mini"},
		{"Retry.MaxAttempts", cfg.Retry.MaxAttempts, 3},
		{"Publish.MaxFeedItems", cfg.Publish.MaxFeedItems, 20},
		{"Server.Port", cfg.Server.Port, 8080},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want default %v", c.name, c.got, c.want)
		}
	}
}

func TestDefault_MatchesDefaultFile(t *testing.T) {
	cfg := Default()
	if len(cfg.Sources) != 9 || cfg.Cluster.SimilarityThreshold != 0.6 || cfg.Publish.Dir != "public" {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestLoad_EnvVar_AIAPIKey(t *testing.T) {
	clearEnv(t)
	content := `
[ai]
provider = "anthropic"
api_key = "from-config"
` + oneSource
	path := writeTestConfig(t, content)
	t.Setenv("AI_API_KEY", "from-env-generic")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.AI.APIKey != "from-env-generic" {
		t.Errorf("AI.APIKey = %q, want %q (AI_API_KEY should override config)", cfg.AI.APIKey, "from-env-generic")
	}
}

func TestLoad_EnvVar_ProviderKeys(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      string
	}{
		{name: "anthropic", provider: "anthropic", env: "ANTHROPIC_API_KEY"},
		{name: "openai", provider: "openai", env: "OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			content := `
[ai]
provider = "` + tt.provider + `"
api_key = "from-config"
` + oneSource
			path := writeTestConfig(t, content)
			t.Setenv(tt.env, "from-env")

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load(%q) unexpected error: %v", path, err)
			}
			if cfg.AI.APIKey != "from-env" {
				t.Errorf("AI.APIKey = %q, want %q (%s should override)", cfg.AI.APIKey, "from-env", tt.env)
			}
		})
	}
}

func TestLoad_EnvVar_AIAPIKey_TakesPrecedence(t *testing.T) {
	clearEnv(t)
	content := `
[ai]
provider = "anthropic"
api_key = "from-config"
` + oneSource
	path := writeTestConfig(t, content)
	t.Setenv("ANTHROPIC_API_KEY", "from-env-anthropic")
	t.Setenv("AI_API_KEY", "from-env-generic")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.AI.APIKey != "from-env-generic" {
		t.Errorf("AI.APIKey = %q, want %q (AI_API_KEY should take precedence over ANTHROPIC_API_KEY)", cfg.AI.APIKey, "from-env-generic")
	}
}

func TestLoad_EnvVar_Embedding(t *testing.T) {
	clearEnv(t)
	content := `
[embedding]
provider = "cohere"
` + oneSource
	path := writeTestConfig(t, content)
	t.Setenv("COHERE_API_KEY", "co-env")
	t.Setenv("EMBEDDING_MODEL", "embed-multilingual-v3.0")
	t.Setenv("MODEL_NAME", "gpt-4o")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.Embedding.APIKey != "co-env" {
		t.Errorf("Embedding.APIKey = %q, want %q", cfg.Embedding.APIKey, "co-env")
	}
	if cfg.Embedding.Model != "embed-multilingual-v3.0" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Errorf("AI.Model = %q, want MODEL_NAME override", cfg.AI.Model)
	}
	if cfg.Cache.RedisAddr != "redis:6380" {
		t.Errorf("Cache.RedisAddr = %q", cfg.Cache.RedisAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown ai provider", content: "[ai]\nprovider = \"gemini\"\n" + oneSource},
		{name: "unknown embedding provider", content: "[embedding]\nprovider = \"word2vec\"\n" + oneSource},
		{name: "unknown overflow policy", content: "[embedding]\noverflow = \"drop\"\n" + oneSource},
		{name: "unknown cache backend", content: "[cache]\nbackend = \"memcached\"\n" + oneSource},
		{name: "redis without address", content: "[cache]\nbackend = \"redis\"\n" + oneSource},
		{name: "zero port", content: "[server]\nport = 0\n" + oneSource},
		{name: "port too high", content: "[server]\nport = 70000\n" + oneSource},
		{name: "explicit zero ttl", content: "[cache]\nttl_hours = 0\n" + oneSource},
		{name: "explicit zero min cluster size", content: "[cluster]\nmin_cluster_size = 0\n" + oneSource},
		{name: "similarity above one", content: "[cluster]\nsimilarity_threshold = 1.5\n" + oneSource},
		{name: "threshold above ten", content: "[importance]\nthreshold = 11.0\n" + oneSource},
		{name: "negative criterion floor", content: "[importance]\nmin_any_criterion = -1.0\n" + oneSource},
		{name: "jitter above one", content: "[retry]\njitter = 2.0\n" + oneSource},
		{name: "no sources", content: "[server]\nport = 8080\n"},
		{name: "bad lean", content: "[[sources]]\nname = \"X\"\nurl = \"https://x.example/rss\"\nlean = \"far-left\"\n"},
		{name: "missing url", content: "[[sources]]\nname = \"X\"\nlean = \"left\"\n"},
		{name: "duplicate source", content: oneSource + oneSource},
		{name: "malformed toml", content: "[cluster\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeTestConfig(t, tt.content)

			if _, err := Load(path); err == nil {
				t.Fatalf("Load(%q) expected error, got nil", path)
			}
		})
	}
}

func TestLoad_EmptyAPIKey_NoError(t *testing.T) {
	clearEnv(t)
	content := `
[ai]
provider = "anthropic"
api_key = ""
` + oneSource
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v (empty api_key should warn, not fail)", path, err)
	}

	if cfg.AI.APIKey != "" {
		t.Errorf("AI.APIKey = %q, want empty string", cfg.AI.APIKey)
	}
	if cfg.AI.Enabled() {
		t.Error("AI.Enabled() = true with an empty key")
	}
}

func TestCacheConfig_TTL(t *testing.T) {
	c := CacheConfig{TTLHours: 24, SummaryTTLHours: 168}
	if c.TTL().Hours() != 24 || c.SummaryTTL().Hours() != 168 {
		t.Errorf("TTL() = %v, SummaryTTL() = %v", c.TTL(), c.SummaryTTL())
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := &Config{DataDir: "/data", Publish: PublishConfig{Dir: "public"}}
	if got := cfg.PublishDir(); got != filepath.Join("/data", "public") {
		t.Errorf("PublishDir() = %q", got)
	}
	if got := cfg.DatabasePath(); got != filepath.Join("/data", "spectrum.db") {
		t.Errorf("DatabasePath() = %q", got)
	}

	cfg.Publish.Dir = "/srv/www"
	if got := cfg.PublishDir(); got != "/srv/www" {
		t.Errorf("PublishDir() = %q, want absolute dir unchanged", got)
	}

	if filepath.Base(DefaultConfigPath()) != "config.toml" {
		t.Errorf("DefaultConfigPath() = %q", DefaultConfigPath())
	}
}
