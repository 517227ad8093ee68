package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// Prompts are fmt templates for the oracle. Propose templates take the
// catalog listing and the avoid list; validate templates take the batch
// listing and the definitions listing.
type Prompts struct {
	ProposeMerges         string `toml:"propose_merges"`
	ProposeRelationships  string `toml:"propose_relationships"`
	ValidateMerges        string `toml:"validate_merges"`
	ValidateRelationships string `toml:"validate_relationships"`
}

type LLMConfig struct {
	Provider  string  `toml:"provider"`
	Model     string  `toml:"model"`
	APIKey    string  `toml:"api_key"`
	BaseURL   string  `toml:"base_url"`
	MaxTokens int     `toml:"max_tokens"`
	RPS       float64 `toml:"requests_per_second"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	MaxPool  int    `toml:"max_pool_size"`
}

type NormalizationConfig struct {
	MaxIterations          int `toml:"max_iterations"`
	Window                 int `toml:"window"`
	Threshold              int `toml:"threshold"`
	MaxAttempts            int `toml:"max_attempts"`
	MinBackoffMS           int `toml:"min_backoff_ms"`
	MaxBackoffMS           int `toml:"max_backoff_ms"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
}

func (n NormalizationConfig) MinBackoff() time.Duration {
	return time.Duration(n.MinBackoffMS) * time.Millisecond
}

func (n NormalizationConfig) MaxBackoff() time.Duration {
	return time.Duration(n.MaxBackoffMS) * time.Millisecond
}

type ReviewConfig struct {
	Path string `toml:"path"`
}

type RedisConfig struct {
	Addr    string `toml:"addr"`
	Channel string `toml:"channel"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

type Config struct {
	LLM           LLMConfig           `toml:"llm"`
	Memgraph      MemgraphConfig      `toml:"memgraph"`
	Normalization NormalizationConfig `toml:"normalization"`
	Prompts       Prompts             `toml:"prompts"`
	Review        ReviewConfig        `toml:"review"`
	Redis         RedisConfig         `toml:"redis"`
	Server        ServerConfig        `toml:"server"`
	Log           LogConfig           `toml:"log"`
}

// Default returns a config that runs against a local Ollama and Memgraph.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "ollama",
			Model:     "gpt-oss:latest",
			BaseURL:   "http://localhost:11434",
			MaxTokens: 4096,
			RPS:       2,
		},
		Memgraph: MemgraphConfig{
			URI:     "bolt://localhost:7687",
			MaxPool: 50,
		},
		Normalization: NormalizationConfig{
			MaxIterations:          10,
			Window:                 2,
			Threshold:              3,
			MaxAttempts:            3,
			MinBackoffMS:           1000,
			MaxBackoffMS:           30000,
			MaxConsecutiveFailures: 3,
		},
		Prompts: DefaultPrompts(),
		Review:  ReviewConfig{Path: "canon-reviews.db"},
		Redis:   RedisConfig{Channel: "canon.progress"},
		Server:  ServerConfig{Port: "8080"},
		Log:     LogConfig{Mode: "dev"},
	}
}

// Load reads a TOML file on top of Default. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse TOML")
	}
	cfg.Prompts = cfg.Prompts.withDefaults()

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Memgraph.URI, "MEMGRAPH_URI")
	setString(&c.Memgraph.User, "MEMGRAPH_USER")
	setString(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	setString(&c.Memgraph.Database, "MEMGRAPH_DATABASE")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Channel, "REDIS_CHANNEL")
	setString(&c.Review.Path, "REVIEW_DB_PATH")
	setString(&c.Server.Port, "PORT")
	setString(&c.Log.Mode, "LOG_MODE")
	setInt(&c.Normalization.MaxIterations, "NORMALIZATION_MAX_ITERATIONS")
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	n := c.Normalization
	switch {
	case n.MaxIterations <= 0:
		return errors.New("normalization.max_iterations must be positive")
	case n.Window <= 0:
		return errors.New("normalization.window must be positive")
	case n.Threshold <= 0:
		return errors.New("normalization.threshold must be positive")
	case n.MaxAttempts <= 0:
		return errors.New("normalization.max_attempts must be positive")
	}
	if c.LLM.Provider == "" {
		return errors.WithHint(errors.New("llm.provider is empty"), "set LLM_PROVIDER or [llm] provider")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}

// Resolve loads the config used by the binaries. An empty path falls back
// to CONFIG_PATH and then config/config.toml; a missing fallback file means
// defaults. Environment overrides are applied and the result validated.
func Resolve(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = "config/config.toml"
	}

	cfg, err := Load(path)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
