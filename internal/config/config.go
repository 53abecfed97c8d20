package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BaseURLEnv overrides LLMConfig.BaseURL when set.
const BaseURLEnv = "KBRAG_BASE_URL"

// LLMConfig holds connection settings shared by the embedding and completion clients.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// APIKey returns the key read from the configured environment variable.
func (c LLMConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// EmbedderConfig configures the embedding model and batching.
type EmbedderConfig struct {
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// CompletionConfig configures the chat model.
type CompletionConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type          string `yaml:"type"`
	SegmentSize   int    `yaml:"segment_size"`
	Lookback      int    `yaml:"lookback"`
	FallbackChars int    `yaml:"fallback_chars"`
	MaxSentences  int    `yaml:"max_sentences"`
}

// StoreConfig selects the persistence backend and its file names.
type StoreConfig struct {
	Type             string `yaml:"type"`
	Dir              string `yaml:"dir"`
	IndexFile        string `yaml:"index_file"`
	PassagesFile     string `yaml:"passages_file"`
	SummaryCacheFile string `yaml:"summary_cache_file"`
	SQLitePath       string `yaml:"sqlite_path"`
}

// Path joins name onto the store directory.
func (c StoreConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// RetrievalConfig configures query-time behavior.
type RetrievalConfig struct {
	TopK       int  `yaml:"top_k"`
	CacheIndex bool `yaml:"cache_index"`
}

// CorpusConfig configures which files a build scans.
type CorpusConfig struct {
	Extensions []string `yaml:"extensions"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Completion CompletionConfig `yaml:"completion"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Store      StoreConfig      `yaml:"store"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./kbrag.yaml first, then ~/.config/kbrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/kbrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "kbrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kbrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = 1
	}

	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = 0.2
	}

	if cfg.Chunker.MaxSize <= 0 {
		cfg.Chunker.MaxSize = 384
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 64
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "llm"
	}
	if cfg.Summarizer.SegmentSize <= 0 {
		cfg.Summarizer.SegmentSize = 50000
	}
	if cfg.Summarizer.Lookback <= 0 {
		cfg.Summarizer.Lookback = 1000
	}
	if cfg.Summarizer.FallbackChars <= 0 {
		cfg.Summarizer.FallbackChars = 200
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 5
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "file"
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "."
	}
	if cfg.Store.IndexFile == "" {
		cfg.Store.IndexFile = "kb.index"
	}
	if cfg.Store.PassagesFile == "" {
		cfg.Store.PassagesFile = "kb_store.jsonl"
	}
	if cfg.Store.SummaryCacheFile == "" {
		cfg.Store.SummaryCacheFile = "kb_summary_cache.json"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "kb.sqlite"
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 10
	}

	if len(cfg.Corpus.Extensions) == 0 {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".pdf"}
	}
	for i, ext := range cfg.Corpus.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Corpus.Extensions[i] = ext
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		cfg.LLM.BaseURL = v
	}
}
