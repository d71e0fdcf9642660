// Package config handles mailgroom configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/mailgroom/config.yaml,
// /etc/mailgroom/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mailgroom", "config.yaml"))
	}

	paths = append(paths, "/etc/mailgroom/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mailgroom configuration.
type Config struct {
	IMAP     IMAPConfig     `yaml:"imap"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Organize OrganizeConfig `yaml:"organize"`
	Report   ReportConfig   `yaml:"report"`
	LogLevel string         `yaml:"log_level"`
	LogFile  string         `yaml:"log_file"`
}

// IMAPConfig defines the IMAP server connection.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // default 993
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Insecure disables TLS. Only for local test servers.
	Insecure bool `yaml:"insecure"`
}

// SMTPConfig defines the outgoing server used by the seed and respond
// subcommands.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // default 587
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ReportConfig defines run-report persistence.
type ReportConfig struct {
	// Database is the SQLite file for run reports. Empty disables
	// reporting.
	Database string `yaml:"database"`
}

// OrganizeConfig tunes the organizer pipeline.
type OrganizeConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a
	// message to join a cluster anchor.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinClusterSize      int     `yaml:"min_cluster_size"`
	MinClusterFraction  float64 `yaml:"min_cluster_fraction"`

	// CrossSpamSimilarity flags inbox mail resembling known spam or
	// trash; CrossSpamSampleLimit caps the reference corpus.
	CrossSpamSimilarity  float64 `yaml:"cross_spam_similarity"`
	CrossSpamSampleLimit int     `yaml:"cross_spam_sample_limit"`

	CategoryMatchThreshold float64 `yaml:"category_match_threshold"`
	CategorySenderWeight   float64 `yaml:"category_sender_weight"`
	CategorySampleLimit    int     `yaml:"category_sample_limit"`

	// Messages below both floors are skipped, not clustered.
	ContentMinChars  int `yaml:"content_min_chars"`
	ContentMinTokens int `yaml:"content_min_tokens"`

	ConversationDays  int `yaml:"conversation_days"`
	ConversationLimit int `yaml:"conversation_limit"`

	MaxFeatures   int    `yaml:"max_features"`
	StopwordsMode string `yaml:"stopwords_mode"` // "english" or empty

	CleanupEmptyCategories bool `yaml:"cleanup_empty_categories"`

	// MessageLimit caps how many inbox messages one run processes.
	MessageLimit int `yaml:"message_limit"`

	Retries        int     `yaml:"retries"`
	BackoffSeconds float64 `yaml:"backoff_seconds"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		IMAP: IMAPConfig{Port: 993},
		SMTP: SMTPConfig{Port: 587},
		Organize: OrganizeConfig{
			SimilarityThreshold:    0.25,
			MinClusterSize:         2,
			MinClusterFraction:     0.10,
			CrossSpamSimilarity:    0.6,
			CrossSpamSampleLimit:   200,
			CategoryMatchThreshold: 0.5,
			CategorySenderWeight:   0.2,
			CategorySampleLimit:    50,
			ContentMinChars:        40,
			ContentMinTokens:       6,
			ConversationDays:       360,
			ConversationLimit:      300,
			MaxFeatures:            100,
			CleanupEmptyCategories: true,
			MessageLimit:           100,
			Retries:                2,
			BackoffSeconds:         0.5,
		},
	}
}

// Load reads configuration from a YAML file over the defaults.
// Environment variables in the file are expanded, so secrets can be
// written as password: ${IMAP_PASSWORD}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the parts every subcommand needs. SMTP settings are
// checked separately by the commands that send mail.
func (c *Config) Validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port %d out of range", c.IMAP.Port)
	}

	o := c.Organize
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"organize.similarity_threshold", o.SimilarityThreshold},
		{"organize.cross_spam_similarity", o.CrossSpamSimilarity},
		{"organize.category_match_threshold", o.CategoryMatchThreshold},
		{"organize.min_cluster_fraction", o.MinClusterFraction},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", f.name, f.value)
		}
	}
	if o.MinClusterSize < 1 {
		return fmt.Errorf("organize.min_cluster_size must be at least 1")
	}
	if o.MessageLimit < 1 {
		return fmt.Errorf("organize.message_limit must be at least 1")
	}
	if o.Retries < 0 {
		return fmt.Errorf("organize.retries must not be negative")
	}
	return nil
}

// ValidateSMTP checks the settings the sending subcommands need.
func (c *Config) ValidateSMTP() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port %d out of range", c.SMTP.Port)
	}
	return nil
}
