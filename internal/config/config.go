package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config is the complete merged configuration for a project, assembled from
// context.yaml, config.yaml and environment overrides per the external
// interface layout under .contextos/.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Project     ProjectConfig     `yaml:"project" json:"project"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Graph       GraphConfig       `yaml:"graph" json:"graph"`
	Ranker      RankerConfig      `yaml:"ranker" json:"ranker"`
	Budget      BudgetConfig      `yaml:"budget" json:"budget"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Contextual  ContextualConfig  `yaml:"contextual" json:"contextual"`
	Agent       AgentConfig       `yaml:"agent" json:"agent"`
	Sandbox     SandboxConfig     `yaml:"sandbox" json:"sandbox"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Submodules  SubmoduleConfig   `yaml:"submodules" json:"submodules"`
	Sessions    SessionsConfig    `yaml:"sessions" json:"sessions"`
	Compaction  CompactionConfig  `yaml:"compaction" json:"compaction"`
}

// ProjectConfig mirrors context.yaml's project metadata block: name,
// language, optional framework/description, stack, and the declared
// constraints/boundaries list.
type ProjectConfig struct {
	Name        string       `yaml:"name" json:"name"`
	Language    string       `yaml:"language" json:"language"`
	Framework   string       `yaml:"framework" json:"framework"`
	Description string       `yaml:"description" json:"description"`
	Stack       []string     `yaml:"stack" json:"stack"`
	Constraints []Constraint `yaml:"constraints" json:"constraints"`
	Boundaries  []string     `yaml:"boundaries" json:"boundaries"`
}

// Constraint is a single rule from context.yaml's constraints list.
// Severity is one of "error", "warning", "info". Scope, if set, is a glob
// restricting the files the rule applies to.
type Constraint struct {
	Rule     string `yaml:"rule" json:"rule"`
	Severity string `yaml:"severity" json:"severity"`
	Scope    string `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// PathsConfig configures which paths the indexer walks, mirroring
// config.yaml's indexing options (watch_mode, ignore_patterns, file_size_limit).
type PathsConfig struct {
	Include        []string `yaml:"include" json:"include"`
	Exclude        []string `yaml:"exclude" json:"exclude"`
	WatchMode      bool     `yaml:"watch_mode" json:"watch_mode"`
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`
	FileSizeLimit  int64    `yaml:"file_size_limit" json:"file_size_limit"`
}

// GraphConfig configures the dependency graph, mirroring config.yaml's
// graph options (max_depth, follow_types).
type GraphConfig struct {
	MaxDepth    int      `yaml:"max_depth" json:"max_depth"`
	FollowTypes []string `yaml:"follow_types" json:"follow_types"`
}

// RankerConfig configures the Hybrid Ranker's weighted sum.
// LexicalWeight + StructuralWeight + VectorWeight must equal 1.0.
type RankerConfig struct {
	LexicalWeight    float64 `yaml:"lexical_weight" json:"lexical_weight"`
	StructuralWeight float64 `yaml:"structural_weight" json:"structural_weight"`
	VectorWeight     float64 `yaml:"vector_weight" json:"vector_weight"`
	MinTokenLength   int     `yaml:"min_token_length" json:"min_token_length"`
}

// BudgetConfig configures the Token Budgeter, mirroring config.yaml's
// budgeting options (strategy, target_model).
type BudgetConfig struct {
	Strategy        string             `yaml:"strategy" json:"strategy"`
	TargetModel     string             `yaml:"target_model" json:"target_model"`
	MaxTokens       int                `yaml:"max_tokens" json:"max_tokens"`
	CharsPerToken   map[string]float64 `yaml:"chars_per_token" json:"chars_per_token"`
	MinChunkTokens  int                `yaml:"min_chunk_tokens" json:"min_chunk_tokens"`
	IncludeRules    bool               `yaml:"include_rules" json:"include_rules"`
	TopRulesInCore  int                `yaml:"top_rules_in_core" json:"top_rules_in_core"`
}

// EmbeddingsConfig configures the pluggable embedding provider. The core
// vector store never computes embeddings itself; it only accepts vectors
// this provider produces.
type EmbeddingsConfig struct {
	Strategy   string `yaml:"strategy" json:"strategy"`
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	ChunkSize  int    `yaml:"chunk_size" json:"chunk_size"`
	Overlap    int    `yaml:"overlap" json:"overlap"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	InterBatchDelay        string  `yaml:"inter_batch_delay" json:"inter_batch_delay"`
	TimeoutProgression     float64 `yaml:"timeout_progression" json:"timeout_progression"`
	RetryTimeoutMultiplier float64 `yaml:"retry_timeout_multiplier" json:"retry_timeout_multiplier"`
}

// ContextualConfig configures LLM-assisted goal inference and chunk context
// prefixes generated at index time.
type ContextualConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Model        string `yaml:"model" json:"model"`
	Host         string `yaml:"host" json:"host"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	BatchSize    int    `yaml:"batch_size" json:"batch_size"`
	FallbackOnly bool   `yaml:"fallback_only" json:"fallback_only"`
	CodeChunks   bool   `yaml:"code_chunks" json:"code_chunks"`
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// AgentConfig configures the Recursive Agent Engine's caps.
type AgentConfig struct {
	MaxDepth        int    `yaml:"max_depth" json:"max_depth"`
	MaxTokenBudget  int    `yaml:"max_token_budget" json:"max_token_budget"`
	TimeoutMs       int    `yaml:"timeout_ms" json:"timeout_ms"`
	EnableSubAgents bool   `yaml:"enable_sub_agents" json:"enable_sub_agents"`
	MaxIterations   int    `yaml:"max_iterations" json:"max_iterations"`
	BackendName     string `yaml:"backend_name" json:"backend_name"`
}

// SandboxConfig configures the RAE's code sandbox.
type SandboxConfig struct {
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	CacheSize     int    `yaml:"cache_size" json:"cache_size"`
	MemoryLimit   string `yaml:"memory_limit" json:"memory_limit"`
	Quantization  string `yaml:"quantization" json:"quantization"`
}

// ServerConfig configures the peripheral MCP adapter.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// SubmoduleConfig configures git submodule discovery.
type SubmoduleConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Recursive bool     `yaml:"recursive" json:"recursive"`
	Include   []string `yaml:"include" json:"include"`
	Exclude   []string `yaml:"exclude" json:"exclude"`
}

// SessionsConfig configures RAE execution-state persistence.
type SessionsConfig struct {
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	AutoSave    bool   `yaml:"auto_save" json:"auto_save"`
	MaxSessions int    `yaml:"max_sessions" json:"max_sessions"`
}

// CompactionConfig configures automatic background compaction of the vector
// store's lazily-deleted entries.
type CompactionConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	OrphanThreshold float64 `yaml:"orphan_threshold" json:"orphan_threshold"`
	MinOrphanCount  int     `yaml:"min_orphan_count" json:"min_orphan_count"`
	IdleTimeout     string  `yaml:"idle_timeout" json:"idle_timeout"`
	Cooldown        string  `yaml:"cooldown" json:"cooldown"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// defaultCharsPerToken are the approximate characters-per-token ratios used
// by the Token Budgeter when a model has no explicit override; "default"
// is used for any unrecognized model id.
var defaultCharsPerToken = map[string]float64{
	"default": 4.0,
	"gpt-4":   4.0,
	"gpt-4o":  4.0,
	"claude":  3.8,
	"llama":   4.2,
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Project: ProjectConfig{
			Language:    "unknown",
			Constraints: []Constraint{},
		},
		Paths: PathsConfig{
			Include:        []string{},
			Exclude:        defaultExcludePatterns,
			WatchMode:      false,
			IgnorePatterns: []string{},
			FileSizeLimit:  1 << 20, // 1MiB
		},
		Graph: GraphConfig{
			MaxDepth:    6,
			FollowTypes: []string{"import", "require"},
		},
		Ranker: RankerConfig{
			LexicalWeight:    0.4,
			StructuralWeight: 0.3,
			VectorWeight:     0.3,
			MinTokenLength:   4,
		},
		Budget: BudgetConfig{
			Strategy:       "greedy",
			TargetModel:    "default",
			MaxTokens:      8000,
			CharsPerToken:  cloneCharsPerToken(defaultCharsPerToken),
			MinChunkTokens: 40,
			IncludeRules:   true,
			TopRulesInCore: 10,
		},
		Embeddings: EmbeddingsConfig{
			Strategy:   "sliding-window",
			Provider:   "", // empty triggers auto-detection: ollama -> static
			Model:      "qwen3-embedding:8b",
			Dimensions: 0, // auto-detect from embedder
			ChunkSize:  1500,
			Overlap:    200,
			BatchSize:  32,

			OllamaHost: "",

			InterBatchDelay:        "",
			TimeoutProgression:     1.5,
			RetryTimeoutMultiplier: 1.0,
		},
		Contextual: ContextualConfig{
			Enabled:       true,
			Model:         "qwen3:0.6b",
			Host:          "http://localhost:11434",
			Timeout:       "5s",
			BatchSize:     8,
			FallbackOnly:  false,
			CodeChunks:    false,
			MinConfidence: 0.5,
		},
		Agent: AgentConfig{
			MaxDepth:        3,
			MaxTokenBudget:  20000,
			TimeoutMs:       60000,
			EnableSubAgents: true,
			MaxIterations:   12,
			BackendName:     "default",
		},
		Sandbox: SandboxConfig{
			TimeoutMs: 6000, // ~ AgentConfig.TimeoutMs / 10
		},
		Performance: PerformanceConfig{
			MaxFiles:      100000,
			IndexWorkers:  runtime.NumCPU(),
			WatchDebounce: "500ms",
			CacheSize:     1000,
			MemoryLimit:   "auto",
			Quantization:  "f16",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
		Submodules: SubmoduleConfig{
			Enabled:   false,
			Recursive: true,
			Include:   nil,
			Exclude:   nil,
		},
		Sessions: SessionsConfig{
			StoragePath: defaultSessionsPath(),
			AutoSave:    true,
			MaxSessions: 20,
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
	}
}

func cloneCharsPerToken(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func defaultSessionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".contextos", "sessions")
	}
	return filepath.Join(home, ".contextos", "sessions")
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contextos", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "contextos", "config.yaml")
	}
	return filepath.Join(home, ".config", "contextos", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the project rooted at dir, applying
// precedence from lowest to highest:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/contextos/config.yaml)
//  3. Project config (.contextos/config.yaml, .contextos/context.yaml)
//  4. Environment variables (CONTEXTOS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges .contextos/context.yaml and .contextos/config.yaml,
// in that order, tolerating either being absent.
func (c *Config) loadFromFile(dir string) error {
	stateDir := filepath.Join(dir, ".contextos")

	for _, name := range []string{"context.yaml", "config.yaml"} {
		path := filepath.Join(stateDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := c.loadYAML(path); err != nil {
			return err
		}
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

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Project.Name != "" {
		c.Project.Name = other.Project.Name
	}
	if other.Project.Language != "" {
		c.Project.Language = other.Project.Language
	}
	if other.Project.Framework != "" {
		c.Project.Framework = other.Project.Framework
	}
	if other.Project.Description != "" {
		c.Project.Description = other.Project.Description
	}
	if len(other.Project.Stack) > 0 {
		c.Project.Stack = other.Project.Stack
	}
	if len(other.Project.Constraints) > 0 {
		c.Project.Constraints = other.Project.Constraints
	}
	if len(other.Project.Boundaries) > 0 {
		c.Project.Boundaries = other.Project.Boundaries
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.WatchMode {
		c.Paths.WatchMode = other.Paths.WatchMode
	}
	if len(other.Paths.IgnorePatterns) > 0 {
		c.Paths.IgnorePatterns = other.Paths.IgnorePatterns
	}
	if other.Paths.FileSizeLimit != 0 {
		c.Paths.FileSizeLimit = other.Paths.FileSizeLimit
	}

	if other.Graph.MaxDepth != 0 {
		c.Graph.MaxDepth = other.Graph.MaxDepth
	}
	if len(other.Graph.FollowTypes) > 0 {
		c.Graph.FollowTypes = other.Graph.FollowTypes
	}

	if other.Ranker.LexicalWeight != 0 {
		c.Ranker.LexicalWeight = other.Ranker.LexicalWeight
	}
	if other.Ranker.StructuralWeight != 0 {
		c.Ranker.StructuralWeight = other.Ranker.StructuralWeight
	}
	if other.Ranker.VectorWeight != 0 {
		c.Ranker.VectorWeight = other.Ranker.VectorWeight
	}
	if other.Ranker.MinTokenLength != 0 {
		c.Ranker.MinTokenLength = other.Ranker.MinTokenLength
	}

	if other.Budget.Strategy != "" {
		c.Budget.Strategy = other.Budget.Strategy
	}
	if other.Budget.TargetModel != "" {
		c.Budget.TargetModel = other.Budget.TargetModel
	}
	if other.Budget.MaxTokens != 0 {
		c.Budget.MaxTokens = other.Budget.MaxTokens
	}
	if len(other.Budget.CharsPerToken) > 0 {
		for k, v := range other.Budget.CharsPerToken {
			c.Budget.CharsPerToken[k] = v
		}
	}
	if other.Budget.MinChunkTokens != 0 {
		c.Budget.MinChunkTokens = other.Budget.MinChunkTokens
	}
	if other.Budget.TopRulesInCore != 0 {
		c.Budget.TopRulesInCore = other.Budget.TopRulesInCore
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.ChunkSize != 0 {
		c.Embeddings.ChunkSize = other.Embeddings.ChunkSize
	}
	if other.Embeddings.Overlap != 0 {
		c.Embeddings.Overlap = other.Embeddings.Overlap
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.InterBatchDelay != "" {
		c.Embeddings.InterBatchDelay = other.Embeddings.InterBatchDelay
	}
	if other.Embeddings.TimeoutProgression != 0 {
		c.Embeddings.TimeoutProgression = other.Embeddings.TimeoutProgression
	}
	if other.Embeddings.RetryTimeoutMultiplier != 0 {
		c.Embeddings.RetryTimeoutMultiplier = other.Embeddings.RetryTimeoutMultiplier
	}

	if other.Agent.MaxDepth != 0 {
		c.Agent.MaxDepth = other.Agent.MaxDepth
	}
	if other.Agent.MaxTokenBudget != 0 {
		c.Agent.MaxTokenBudget = other.Agent.MaxTokenBudget
	}
	if other.Agent.TimeoutMs != 0 {
		c.Agent.TimeoutMs = other.Agent.TimeoutMs
	}
	if other.Agent.MaxIterations != 0 {
		c.Agent.MaxIterations = other.Agent.MaxIterations
	}
	if other.Agent.BackendName != "" {
		c.Agent.BackendName = other.Agent.BackendName
	}

	if other.Sandbox.TimeoutMs != 0 {
		c.Sandbox.TimeoutMs = other.Sandbox.TimeoutMs
	}

	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
	if other.Performance.CacheSize != 0 {
		c.Performance.CacheSize = other.Performance.CacheSize
	}
	if other.Performance.MemoryLimit != "" {
		c.Performance.MemoryLimit = other.Performance.MemoryLimit
	}
	if other.Performance.Quantization != "" {
		c.Performance.Quantization = other.Performance.Quantization
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Submodules.Enabled {
		c.Submodules.Enabled = other.Submodules.Enabled
	}
	if len(other.Submodules.Include) > 0 || len(other.Submodules.Exclude) > 0 || other.Submodules.Enabled {
		c.Submodules.Recursive = other.Submodules.Recursive
	}
	if len(other.Submodules.Include) > 0 {
		c.Submodules.Include = other.Submodules.Include
	}
	if len(other.Submodules.Exclude) > 0 {
		c.Submodules.Exclude = other.Submodules.Exclude
	}

	if other.Sessions.StoragePath != "" {
		c.Sessions.StoragePath = other.Sessions.StoragePath
		c.Sessions.AutoSave = other.Sessions.AutoSave
	}
	if other.Sessions.MaxSessions > 0 {
		c.Sessions.MaxSessions = other.Sessions.MaxSessions
	}

	if other.Compaction.OrphanThreshold != 0 || other.Compaction.MinOrphanCount != 0 ||
		other.Compaction.IdleTimeout != "" || other.Compaction.Cooldown != "" {
		c.Compaction.Enabled = other.Compaction.Enabled
	}
	if other.Compaction.OrphanThreshold != 0 {
		c.Compaction.OrphanThreshold = other.Compaction.OrphanThreshold
	}
	if other.Compaction.MinOrphanCount != 0 {
		c.Compaction.MinOrphanCount = other.Compaction.MinOrphanCount
	}
	if other.Compaction.IdleTimeout != "" {
		c.Compaction.IdleTimeout = other.Compaction.IdleTimeout
	}
	if other.Compaction.Cooldown != "" {
		c.Compaction.Cooldown = other.Compaction.Cooldown
	}
}

// applyEnvOverrides applies CONTEXTOS_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONTEXTOS_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Ranker.LexicalWeight = w
		}
	}
	if v := os.Getenv("CONTEXTOS_STRUCTURAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Ranker.StructuralWeight = w
		}
	}
	if v := os.Getenv("CONTEXTOS_VECTOR_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Ranker.VectorWeight = w
		}
	}
	if v := os.Getenv("CONTEXTOS_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Budget.MaxTokens = n
		}
	}
	if v := os.Getenv("CONTEXTOS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CONTEXTOS_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CONTEXTOS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CONTEXTOS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CONTEXTOS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CONTEXTOS_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("CONTEXTOS_AGENT_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxDepth = n
		}
	}
	if v := os.Getenv("CONTEXTOS_AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("CONTEXTOS_COMPACTION_ENABLED"); v != "" {
		c.Compaction.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CONTEXTOS_COMPACTION_ORPHAN_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Compaction.OrphanThreshold = t
		}
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// DetectProjectType detects the project type based on marker files.
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}
	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root by walking up from startDir
// looking for a .git directory or a .contextos state directory.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if dirExists(filepath.Join(currentDir, ".contextos")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"}

	var found []string
	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}
	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string
	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}
	return found
}

func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func (p ProjectType) String() string {
	return string(p)
}

func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	for _, w := range []float64{c.Ranker.LexicalWeight, c.Ranker.StructuralWeight, c.Ranker.VectorWeight} {
		if w < 0 || w > 1 {
			return fmt.Errorf("ranker weights must be between 0 and 1, got %f", w)
		}
	}

	sum := c.Ranker.LexicalWeight + c.Ranker.StructuralWeight + c.Ranker.VectorWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("ranker.lexical_weight + structural_weight + vector_weight must equal 1.0, got %.2f", sum)
	}

	if c.Budget.MaxTokens < 0 {
		return fmt.Errorf("budget.max_tokens must be non-negative, got %d", c.Budget.MaxTokens)
	}
	if c.Embeddings.ChunkSize < 0 {
		return fmt.Errorf("embeddings.chunk_size must be non-negative, got %d", c.Embeddings.ChunkSize)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"static": true, "ollama": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'static', 'ollama', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
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

// LoadUserConfig loads the user configuration file.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults fills any zero-value section of cfg with values from a
// freshly constructed default Config, returning the names of the top-level
// sections that were filled in. Used by `contextos config upgrade` to bring
// an older config file forward without disturbing the user's existing
// settings.
func MergeNewDefaults(cfg *Config) []string {
	fresh := NewConfig()
	var added []string

	if cfg.Agent == (AgentConfig{}) {
		cfg.Agent = fresh.Agent
		added = append(added, "agent")
	}
	if cfg.Sandbox == (SandboxConfig{}) {
		cfg.Sandbox = fresh.Sandbox
		added = append(added, "sandbox")
	}
	if cfg.Graph.MaxDepth == 0 && len(cfg.Graph.FollowTypes) == 0 {
		cfg.Graph = fresh.Graph
		added = append(added, "graph")
	}
	if !cfg.Submodules.Enabled && len(cfg.Submodules.Include) == 0 && len(cfg.Submodules.Exclude) == 0 {
		cfg.Submodules = fresh.Submodules
		added = append(added, "submodules")
	}
	if cfg.Compaction.OrphanThreshold == 0 && cfg.Compaction.IdleTimeout == "" {
		cfg.Compaction = fresh.Compaction
		added = append(added, "compaction")
	}
	if len(cfg.Budget.CharsPerToken) == 0 {
		cfg.Budget.CharsPerToken = cloneCharsPerToken(fresh.Budget.CharsPerToken)
		added = append(added, "budget.chars_per_token")
	}

	return added
}

// CharsPerToken returns the characters-per-token ratio for modelID, falling
// back to the "default" entry when the model is unrecognized.
func (c *Config) CharsPerToken(modelID string) float64 {
	if r, ok := c.Budget.CharsPerToken[modelID]; ok {
		return r
	}
	return c.Budget.CharsPerToken["default"]
}

// TimeValue parses a duration-like config string ("500ms", "30s"), returning
// the given default on empty or unparseable input.
func TimeValue(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
