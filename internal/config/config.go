package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultIgnoreGlobs are always excluded from indexing, in addition to
// whatever a project's config or IGNORE_GLOBS override appends.
var defaultIgnoreGlobs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/*.lock",
	"**/*.png", "**/*.jpg", "**/*.jpeg", "**/*.gif", "**/*.woff", "**/*.woff2",
	"**/*.so", "**/*.dylib", "**/*.dll", "**/*.exe",
	"**/go.sum", "**/package-lock.json", "**/yarn.lock", "**/pnpm-lock.yaml",
}

// Config is the complete configuration of the memory engine for a single
// project, following the precedence order: hardcoded defaults, then the
// project config file (.devmemory.yaml), then environment variables such
// as PROJECT_ID and CHUNK_SIZE (highest precedence).
type Config struct {
	// ProjectID identifies this project's rows in the Store and its
	// VectorIndex collection prefix. Defaults to the basename of the
	// project root.
	ProjectID string `yaml:"project_id" json:"project_id"`

	// DaemonPort is the HTTP loopback control port. Zero means "derive
	// deterministically from ProjectID" (see internal/daemon/port.go).
	DaemonPort int `yaml:"daemon_port" json:"daemon_port"`

	// StateDir holds the PID file and daemon log. Defaults to
	// ~/.indexer-daemon.
	StateDir string `yaml:"state_dir" json:"state_dir"`

	// DBPath is the relational Store's SQLite file.
	DBPath string `yaml:"db_path" json:"db_path"`

	VectorBackendURL      string `yaml:"vector_backend_url" json:"vector_backend_url"`
	VectorCollectionPrefix string `yaml:"vector_collection_prefix" json:"vector_collection_prefix"`

	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`

	// MaxFileSize is the byte ceiling above which a file is skipped
	// rather than ingested (spec default 512000 = 500 KiB).
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// IgnoreGlobs extends defaultIgnoreGlobs; it never replaces them.
	IgnoreGlobs []string `yaml:"ignore_globs" json:"ignore_globs"`

	Watch       WatchConfig       `yaml:"watch" json:"watch"`
	Query       QueryConfig       `yaml:"query" json:"query"`
	Consolidate ConsolidateConfig `yaml:"consolidate" json:"consolidate"`
	LogLevel    string            `yaml:"log_level" json:"log_level"`
}

// EmbeddingsConfig configures the pluggable Embedder capability.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "static" (deterministic,
	// no external process, default), "ollama", or "mlx".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	MLXEndpoint string `yaml:"mlx_endpoint" json:"mlx_endpoint"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ChunkingConfig configures the VectorIndex's sliding-window chunker.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// WatchConfig configures the WatcherDaemon's debounce behavior.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_millis" json:"debounce_millis"`
}

// QueryConfig configures the QueryRouter's fusion and classification knobs.
type QueryConfig struct {
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	MaxResults  int `yaml:"max_results" json:"max_results"`
}

// ConsolidateConfig configures the Consolidator's near-duplicate thresholds.
type ConsolidateConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	DryRunDefault       bool    `yaml:"dry_run_default" json:"dry_run_default"`
}

// NewConfig returns a Config populated with spec defaults. ProjectID and
// StateDir still need a project root to resolve against; callers use
// Load(dir) for that.
func NewConfig() *Config {
	return &Config{
		DaemonPort:             0, // 0 = derive from ProjectID
		StateDir:               defaultStateDir(),
		DBPath:                 "./agents.db",
		VectorBackendURL:       "http://localhost:8100",
		VectorCollectionPrefix: "", // empty = use ProjectID
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "",
			BatchSize: 32,
		},
		Chunking: ChunkingConfig{
			Size:    300,
			Overlap: 50,
		},
		MaxFileSize: 512000,
		IgnoreGlobs: nil,
		Watch: WatchConfig{
			DebounceMillis: 300,
		},
		Query: QueryConfig{
			RRFConstant: 60,
			MaxResults:  20,
		},
		Consolidate: ConsolidateConfig{
			SimilarityThreshold: 0.92,
			DryRunDefault:       false,
		},
		LogLevel: "info",
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".indexer-daemon")
	}
	return filepath.Join(home, ".indexer-daemon")
}

// Load loads configuration for the project rooted at dir, applying (in
// increasing precedence) hardcoded defaults, the user/global config
// (~/.config/devmemory/config.yaml), the project's .devmemory.yaml or
// .devmemory.yml, then environment variable overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.ProjectID = filepath.Base(absOrSelf(dir))
	cfg.IgnoreGlobs = append([]string{}, defaultIgnoreGlobs...)

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if cfg.VectorCollectionPrefix == "" {
		cfg.VectorCollectionPrefix = cfg.ProjectID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func absOrSelf(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

// loadFromFile attempts to load configuration from .devmemory.yaml or
// .devmemory.yml in dir. Absence of either file is not an error.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".devmemory.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".devmemory.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.ProjectID != "" {
		c.ProjectID = other.ProjectID
	}
	if other.DaemonPort != 0 {
		c.DaemonPort = other.DaemonPort
	}
	if other.StateDir != "" {
		c.StateDir = other.StateDir
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.VectorBackendURL != "" {
		c.VectorBackendURL = other.VectorBackendURL
	}
	if other.VectorCollectionPrefix != "" {
		c.VectorCollectionPrefix = other.VectorCollectionPrefix
	}
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.MLXEndpoint != "" {
		c.Embeddings.MLXEndpoint = other.Embeddings.MLXEndpoint
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.MaxFileSize != 0 {
		c.MaxFileSize = other.MaxFileSize
	}
	if len(other.IgnoreGlobs) > 0 {
		c.IgnoreGlobs = append(c.IgnoreGlobs, other.IgnoreGlobs...)
	}
	if other.Watch.DebounceMillis != 0 {
		c.Watch.DebounceMillis = other.Watch.DebounceMillis
	}
	if other.Query.RRFConstant != 0 {
		c.Query.RRFConstant = other.Query.RRFConstant
	}
	if other.Query.MaxResults != 0 {
		c.Query.MaxResults = other.Query.MaxResults
	}
	if other.Consolidate.SimilarityThreshold != 0 {
		c.Consolidate.SimilarityThreshold = other.Consolidate.SimilarityThreshold
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies the unprefixed environment variables
// (PROJECT_ID, DAEMON_PORT, STATE_DIR, ...), which take
// precedence over both defaults and the project config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PROJECT_ID"); v != "" {
		c.ProjectID = v
	}
	if v := os.Getenv("DAEMON_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.DaemonPort = p
		}
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("VECTOR_BACKEND_URL"); v != "" {
		c.VectorBackendURL = v
	}
	if v := os.Getenv("VECTOR_COLLECTION_PREFIX"); v != "" {
		c.VectorCollectionPrefix = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxFileSize = n
		}
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.Size = n
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("IGNORE_GLOBS"); v != "" {
		c.IgnoreGlobs = append(c.IgnoreGlobs, strings.Split(v, ",")...)
	}
}

// Validate rejects configurations that would violate spec invariants.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id must not be empty")
	}
	if c.DaemonPort != 0 && (c.DaemonPort < 1 || c.DaemonPort > 65535) {
		return fmt.Errorf("daemon_port must be a valid TCP port, got %d", c.DaemonPort)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d with size %d", c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	validProviders := map[string]bool{"static": true, "ollama": true, "mlx": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static', 'ollama', or 'mlx', got %q", c.Embeddings.Provider)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.LogLevel)
	}
	if c.Consolidate.SimilarityThreshold <= 0 || c.Consolidate.SimilarityThreshold > 1 {
		return fmt.Errorf("consolidate.similarity_threshold must be in (0, 1], got %f", c.Consolidate.SimilarityThreshold)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns a nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file directly.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "devmemory", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "devmemory", "config.yaml")
	}
	return filepath.Join(home, ".config", "devmemory", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
