package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GOBPE_"

// Config holds the settings for training and applying a BPE vocabulary.
type Config struct {
	CorpusDir    string   `yaml:"corpus_dir" json:"corpus_dir"`
	Extensions   []string `yaml:"extensions" json:"extensions"` // e.g. [".txt"]
	VocabSize    int      `yaml:"vocab_size" json:"vocab_size"`
	SnapshotPath string   `yaml:"snapshot_path" json:"snapshot_path"`
	SequencePath string   `yaml:"sequence_path" json:"sequence_path"`
	ContextSize  int      `yaml:"context_size" json:"context_size"`
	EvalFraction float64  `yaml:"eval_fraction" json:"eval_fraction"`
	CacheSize    int      `yaml:"cache_size" json:"cache_size"` // 0 disables the word cache
	Concurrency  int      `yaml:"concurrency" json:"concurrency"`
	LogLevel     string   `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		CorpusDir:    "./Data",
		Extensions:   []string{".txt"},
		VocabSize:    5000,
		SnapshotPath: "./checkpoints/tokenizer.tok",
		SequencePath: "./checkpoints/sequences.seq",
		ContextSize:  512,
		EvalFraction: 0.1,
		CacheSize:    4096,
		Concurrency:  4,
		LogLevel:     "info",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty), a .env file found in the working directory or one of its
// parents, and GOBPE_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks bounds on numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.VocabSize < 4:
		return fmt.Errorf("vocab_size must be at least 4 (the reserved tokens), got %d", c.VocabSize)
	case c.ContextSize < 1:
		return fmt.Errorf("context_size must be positive, got %d", c.ContextSize)
	case c.EvalFraction < 0 || c.EvalFraction >= 1:
		return fmt.Errorf("eval_fraction must be in [0, 1), got %g", c.EvalFraction)
	case c.CacheSize < 0:
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
		return nil
	}

	str("CORPUS_DIR", &c.CorpusDir)
	str("SNAPSHOT_PATH", &c.SnapshotPath)
	str("SEQUENCE_PATH", &c.SequencePath)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup(EnvPrefix + "EXTENSIONS"); ok && v != "" {
		c.Extensions = strings.Split(v, ",")
	}

	for name, dst := range map[string]*int{
		"VOCAB_SIZE":   &c.VocabSize,
		"CONTEXT_SIZE": &c.ContextSize,
		"CACHE_SIZE":   &c.CacheSize,
		"CONCURRENCY":  &c.Concurrency,
	} {
		if err := integer(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "EVAL_FRACTION"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "%sEVAL_FRACTION", EnvPrefix)
		}
		c.EvalFraction = f
	}
	return nil
}

// loadEnvFile loads the nearest .env file, looking up to 5 levels above the
// working directory. Variables already set in the environment win.
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	for range 5 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return errors.Wrapf(err, "load %s", envPath)
			}
			return nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}
