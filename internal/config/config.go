package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for models-analyzer
type Config struct {
	// Sources selects the C# peripheral files to analyze
	Sources SourcesConfig `json:"sources,omitempty"`

	// Rules maps violation rule names to severity: "off", "info", "warning", "error".
	// Unset rules keep the severity the policy engine assigned.
	Rules map[string]string `json:"rules,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty"`

	// Output contains result output options
	Output OutputConfig `json:"output,omitempty"`
}

// SourcesConfig selects source files via glob patterns
type SourcesConfig struct {
	// Include is a list of glob patterns for C# files (supports **)
	Include []string `json:"include,omitempty"`

	// Exclude is a list of glob patterns to remove from the include set
	Exclude []string `json:"exclude,omitempty"`
}

// CacheConfig controls incremental analysis cache behavior
type CacheConfig struct {
	// Enabled turns on incremental cache usage
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`

	// BranchDepthLimit bounds conditional-definition lambda descent (0 = default)
	BranchDepthLimit int `json:"branchDepthLimit,omitempty"`

	// Cache controls incremental analysis cache behavior
	Cache CacheConfig `json:"cache,omitempty"`
}

// OutputConfig contains result output options
type OutputConfig struct {
	// Dir is where registersInfo files are written
	Dir string `json:"dir,omitempty"`

	// PolicyDir overrides the embedded policy rules when set
	PolicyDir string `json:"policyDir,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Include: []string{"*.cs", "**/*.cs"},
			Exclude: []string{},
		},
		Rules: map[string]string{},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			BranchDepthLimit: 25,
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     ".models_analyzer_cache",
			},
		},
		Output: OutputConfig{
			Dir: "registersInfo",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./models_analyzer.json (current working directory)
//  2. ./.models_analyzer.json (current working directory)
//  3. <rootPath>/models_analyzer.json (if different from cwd)
//  4. ~/.config/models_analyzer/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "models_analyzer.json"),
		filepath.Join(cwd, ".models_analyzer.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "models_analyzer.json"),
				filepath.Join(rootPath, ".models_analyzer.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "models_analyzer", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Sources.Include) == 0 {
		c.Sources.Include = []string{"*.cs", "**/*.cs"}
	}

	if c.Rules == nil {
		c.Rules = make(map[string]string)
	}

	if c.Analysis.BranchDepthLimit == 0 {
		c.Analysis.BranchDepthLimit = 25
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = ".models_analyzer_cache"
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "registersInfo"
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// ShouldIgnoreFile checks if a file is excluded from analysis
func (c *Config) ShouldIgnoreFile(filePath string) bool {
	for _, pattern := range c.Sources.Exclude {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
