package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported inference providers.
const (
	ProviderTGI    = "tgi"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

// Config aggregates runtime configuration used across the pipeline. It is
// built once by Load and treated as read-only afterwards.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Model     ModelConfig     `yaml:"model"`
	Inference InferenceConfig `yaml:"inference"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Data      DataConfig      `yaml:"data"`
	Output    OutputConfig    `yaml:"output"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Events    EventsConfig    `yaml:"events"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// ModelConfig holds the generation settings fixed for a run.
type ModelConfig struct {
	Name           string  `yaml:"name"`
	MaxInputTokens int     `yaml:"maxInputTokens"`
	MaxNewTokens   int     `yaml:"maxNewTokens"`
	Temperature    float32 `yaml:"temperature"`
	TopK           int     `yaml:"topK"`
	Truncation     bool    `yaml:"truncation"`
	ReturnFullText bool    `yaml:"returnFullText"`
	DoSample       bool    `yaml:"doSample"`
	Tokenizer      string  `yaml:"tokenizer"`
}

// InferenceConfig selects and addresses the inference backend.
type InferenceConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"baseUrl"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PromptConfig carries the instruction template. {title} and {text} are
// substituted per record.
type PromptConfig struct {
	Template string `yaml:"template"`
}

// DataConfig describes the input columns and the batching policy.
type DataConfig struct {
	TitleColumn   string `yaml:"titleColumn"`
	BodyColumn    string `yaml:"bodyColumn"`
	SummaryColumn string `yaml:"summaryColumn"`
	ChunkSize     int    `yaml:"chunkSize"`
	MaxChunkCount int    `yaml:"maxChunkCount"`
}

// OutputConfig locates the two CSV datasets.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	CleanFile  string `yaml:"cleanFile"`
	OutputFile string `yaml:"outputFile"`
}

// HTTPConfig controls the optional status server. An empty address disables it.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// LedgerConfig configures where run records are kept.
type LedgerConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// EventsConfig configures batch completion events.
type EventsConfig struct {
	Valkey   ValkeyConfig `yaml:"valkey"`
	QueueKey string       `yaml:"queueKey"`
}

// ValkeyConfig contains connection information for the event queue.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ArtifactsConfig controls uploading finished datasets to S3-compatible storage.
type ArtifactsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := getenv("SUMMARIZER_VERBOSE"); v != "" {
		cfg.Logging.Verbose = parseBool(v)
	}
	if v := getenv("LLM_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := getenv("LLM_MAX_INPUT_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Model.MaxInputTokens = parsed
		}
	}
	if v := getenv("LLM_MAX_NEW_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Model.MaxNewTokens = parsed
		}
	}
	if v := getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Model.Temperature = float32(parsed)
		}
	}
	if v := getenv("LLM_TOP_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Model.TopK = parsed
		}
	}
	if v := getenv("LLM_PROVIDER"); v != "" {
		cfg.Inference.Provider = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := getenv("LLM_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}
	if v := getenv("DATA_CHUNK_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Data.ChunkSize = parsed
		}
	}
	if v := getenv("DATA_MAX_CHUNK_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Data.MaxChunkCount = parsed
		}
	}
	if v := getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := getenv("LEDGER_POSTGRES_DSN"); v != "" {
		cfg.Ledger.Postgres.DSN = v
	}
	if v := getenv("EVENTS_VALKEY_ENABLED"); v != "" {
		cfg.Events.Valkey.Enabled = parseBool(v)
	}
	if v := getenv("EVENTS_VALKEY_ADDR"); v != "" {
		cfg.Events.Valkey.Addr = v
	}
	if v := getenv("ARTIFACTS_ENABLED"); v != "" {
		cfg.Artifacts.Enabled = parseBool(v)
	}
	if v := getenv("ARTIFACTS_ENDPOINT"); v != "" {
		cfg.Artifacts.Endpoint = v
	}
	if v := getenv("ARTIFACTS_ACCESS_KEY"); v != "" {
		cfg.Artifacts.AccessKey = v
	}
	if v := getenv("ARTIFACTS_SECRET_KEY"); v != "" {
		cfg.Artifacts.SecretKey = v
	}
	if v := getenv("ARTIFACTS_BUCKET"); v != "" {
		cfg.Artifacts.Bucket = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// DefaultPromptTemplate is the instruction sent for every record.
const DefaultPromptTemplate = "\n" +
	"              Write a very short summary of the text delimited by triple backticks, with the title delimited by triple dashes.\n" +
	"              Make sure that the length of the generated summary is only one sentence and it includes the key points of the text and title.\n" +
	"              title:\n" +
	"              ---{title}---\n" +
	"              \n" +
	"              text:\n" +
	"              ```{text}```\n" +
	"              \n" +
	"              Summary:\n" +
	"           "

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Verbose: true,
		},
		Model: ModelConfig{
			Name:           "meta-llama/Llama-2-7b-chat-hf",
			MaxInputTokens: 512,
			MaxNewTokens:   512,
			Temperature:    0.001,
			TopK:           10,
			Truncation:     true,
			ReturnFullText: false,
			DoSample:       true,
			Tokenizer:      "cl100k_base",
		},
		Inference: InferenceConfig{
			Provider: ProviderTGI,
			BaseURL:  "http://localhost:8080",
			Timeout:  120 * time.Second,
		},
		Prompt: PromptConfig{
			Template: DefaultPromptTemplate,
		},
		Data: DataConfig{
			TitleColumn:   "title",
			BodyColumn:    "abstract",
			SummaryColumn: "summary",
			ChunkSize:     32,
			MaxChunkCount: 10,
		},
		Output: OutputConfig{
			Dir:        "data/output",
			CleanFile:  "clean_dataset.csv",
			OutputFile: "output_dataset.csv",
		},
		HTTP: HTTPConfig{
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Ledger: LedgerConfig{
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Events: EventsConfig{
			QueueKey: "batchsum:events",
		},
		Artifacts: ArtifactsConfig{
			Region: "auto",
			Prefix: "runs",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Name) == "" {
		return errors.New("model.name cannot be empty")
	}
	if c.Model.MaxInputTokens <= 0 {
		return errors.New("model.maxInputTokens must be positive")
	}
	if c.Model.MaxNewTokens <= 0 {
		return errors.New("model.maxNewTokens must be positive")
	}
	if c.Model.Temperature < 0 {
		return errors.New("model.temperature cannot be negative")
	}
	if c.Model.TopK < 0 {
		return errors.New("model.topK cannot be negative")
	}
	switch c.Inference.Provider {
	case ProviderTGI:
		if strings.TrimSpace(c.Inference.BaseURL) == "" {
			return errors.New("inference.baseUrl cannot be empty for tgi")
		}
	case ProviderOpenAI, ProviderEcho:
	default:
		return fmt.Errorf("inference.provider %q is not supported", c.Inference.Provider)
	}
	if c.Inference.Timeout < 0 {
		return errors.New("inference.timeout cannot be negative")
	}
	if !strings.Contains(c.Prompt.Template, "{title}") || !strings.Contains(c.Prompt.Template, "{text}") {
		return errors.New("prompt.template must contain {title} and {text}")
	}
	cols := []string{c.Data.TitleColumn, c.Data.BodyColumn, c.Data.SummaryColumn}
	seen := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		if strings.TrimSpace(col) == "" {
			return errors.New("data column names cannot be empty")
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("data column %q is used twice", col)
		}
		seen[col] = struct{}{}
	}
	if c.Data.ChunkSize <= 0 {
		return errors.New("data.chunkSize must be positive")
	}
	if c.Data.MaxChunkCount <= 0 {
		return errors.New("data.maxChunkCount must be positive")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir cannot be empty")
	}
	if strings.TrimSpace(c.Output.CleanFile) == "" || strings.TrimSpace(c.Output.OutputFile) == "" {
		return errors.New("output file names cannot be empty")
	}
	if c.Output.CleanFile == c.Output.OutputFile {
		return errors.New("output.cleanFile and output.outputFile must differ")
	}
	if c.Events.Valkey.Enabled && strings.TrimSpace(c.Events.Valkey.Addr) == "" {
		return errors.New("events.valkey.addr cannot be empty when valkey events are enabled")
	}
	if c.Artifacts.Enabled {
		if strings.TrimSpace(c.Artifacts.Endpoint) == "" {
			return errors.New("artifacts.endpoint cannot be empty when artifacts are enabled")
		}
		if strings.TrimSpace(c.Artifacts.Bucket) == "" {
			return errors.New("artifacts.bucket cannot be empty when artifacts are enabled")
		}
	}
	return nil
}
