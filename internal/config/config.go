package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCanonicalRoot = "images"
	DefaultConcurrency   = 8

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultLegacyRoots are the prefixes that predate the canonical layout.
var DefaultLegacyRoots = []string{"products", "services", "projects", "seasonal", "categories", "ui"}

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes the application level configuration loaded from json or yaml.
type Config struct {
	S3          S3Config       `json:"s3" yaml:"s3"`
	Audit       AuditConfig    `json:"audit" yaml:"audit"`
	Database    DatabaseConfig `json:"database" yaml:"database"`
	MetricsFile string         `json:"metrics_file" yaml:"metrics_file"`
}

// S3Config holds the options for accessing the object store.
type S3Config struct {
	Host            string `json:"host" yaml:"host"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
	ForcePathStyle  bool   `json:"force_path_style" yaml:"force_path_style"`
	// PublicBaseURL is the prefix stored in database records, e.g. a CDN host.
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`
}

// AuditConfig selects the roots that are scanned.
type AuditConfig struct {
	CanonicalRoot string   `json:"canonical_root" yaml:"canonical_root"`
	LegacyRoots   []string `json:"legacy_roots" yaml:"legacy_roots"`
	Concurrency   int      `json:"concurrency" yaml:"concurrency"`
}

// Roots returns the canonical root followed by the legacy roots.
func (a AuditConfig) Roots() []string {
	roots := make([]string, 0, len(a.LegacyRoots)+1)
	roots = append(roots, a.CanonicalRoot)
	roots = append(roots, a.LegacyRoots...)
	return roots
}

// DatabaseConfig points at the record store holding object URLs.
type DatabaseConfig struct {
	Driver     string            `json:"driver" yaml:"driver"`
	DSN        string            `json:"dsn" yaml:"dsn"`
	References []ReferenceTarget `json:"references" yaml:"references"`
}

// Enabled reports whether a reference database is configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.DSN) != ""
}

// ReferenceTarget is a column that may hold an object URL.
type ReferenceTarget struct {
	// Domain groups targets that are migrated in one transaction, e.g.
	// products or services. Defaults to the table name.
	Domain string `json:"domain" yaml:"domain"`
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
	// Array marks a postgres text[] column.
	Array bool `json:"array" yaml:"array"`
}

// DomainName returns the record domain the target belongs to.
func (t ReferenceTarget) DomainName() string {
	if d := strings.TrimSpace(t.Domain); d != "" {
		return d
	}
	return t.Table
}

// LoadFirst tries to load configuration from the given paths, returning the
// first successfully decoded configuration. If none of the paths contain a
// readable config, an error is returned.
func LoadFirst(paths ...string) (*Config, error) {
	var lastErr error
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("config not found in paths: %v", paths)
	}
	return nil, lastErr
}

// Load reads configuration from a single json or yaml file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Audit.CanonicalRoot) == "" {
		c.Audit.CanonicalRoot = DefaultCanonicalRoot
	}
	if c.Audit.LegacyRoots == nil {
		c.Audit.LegacyRoots = append([]string(nil), DefaultLegacyRoots...)
	}
	if c.Audit.Concurrency <= 0 {
		c.Audit.Concurrency = DefaultConcurrency
	}
	if c.Database.Enabled() && c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
}

// Validate performs basic validation of the configuration.
func (c *Config) Validate() error {
	if c.S3.Host == "" {
		return errors.New("config.s3.host must be set")
	}
	if c.S3.Bucket == "" {
		return errors.New("config.s3.bucket must be set")
	}
	canonical := strings.Trim(c.Audit.CanonicalRoot, "/")
	if canonical == "" {
		return errors.New("config.audit.canonical_root must be set")
	}
	for _, root := range c.Audit.LegacyRoots {
		if strings.Trim(root, "/") == canonical {
			return fmt.Errorf("config.audit.legacy_roots must not contain the canonical root %q", canonical)
		}
	}
	if !c.Database.Enabled() {
		return nil
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config.database.driver %q not supported", c.Database.Driver)
	}
	if len(c.Database.References) == 0 {
		return errors.New("config.database.references must list at least one column")
	}
	for i, ref := range c.Database.References {
		if !identRegexp.MatchString(ref.Table) || !identRegexp.MatchString(ref.Column) {
			return fmt.Errorf("config.database.references[%d] has invalid identifier %s.%s", i, ref.Table, ref.Column)
		}
		if ref.Array && c.Database.Driver != DriverPostgres {
			return fmt.Errorf("config.database.references[%d] array columns require postgres", i)
		}
	}
	return nil
}
