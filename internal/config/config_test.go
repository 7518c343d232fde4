package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"s3":{"host":"s3.local","bucket":"media"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCanonicalRoot, cfg.Audit.CanonicalRoot)
	assert.Equal(t, DefaultLegacyRoots, cfg.Audit.LegacyRoots)
	assert.Equal(t, DefaultConcurrency, cfg.Audit.Concurrency)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, []string{"images", "products", "services", "projects", "seasonal", "categories", "ui"}, cfg.Audit.Roots())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
s3:
  host: s3.local
  bucket: media
  public_base_url: https://cdn.example.com
audit:
  canonical_root: assets
  legacy_roots: [old]
database:
  driver: sqlite
  dsn: /tmp/catalog.db
  references:
    - table: products
      column: image_url
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "assets", cfg.Audit.CanonicalRoot)
	assert.Equal(t, []string{"old"}, cfg.Audit.LegacyRoots)
	assert.Equal(t, "https://cdn.example.com", cfg.S3.PublicBaseURL)
	require.Len(t, cfg.Database.References, 1)
	assert.Equal(t, "image_url", cfg.Database.References[0].Column)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"missing host":        `{"s3":{"bucket":"b"}}`,
		"legacy is canonical": `{"s3":{"host":"h","bucket":"b"},"audit":{"canonical_root":"images","legacy_roots":["images/"]}}`,
		"bad driver":          `{"s3":{"host":"h","bucket":"b"},"database":{"driver":"mysql","dsn":"x","references":[{"table":"t","column":"c"}]}}`,
		"no references":       `{"s3":{"host":"h","bucket":"b"},"database":{"dsn":"x"}}`,
		"injected identifier": `{"s3":{"host":"h","bucket":"b"},"database":{"dsn":"x","references":[{"table":"t; drop","column":"c"}]}}`,
		"sqlite array":        `{"s3":{"host":"h","bucket":"b"},"database":{"driver":"sqlite","dsn":"x","references":[{"table":"t","column":"c","array":true}]}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.json", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFirstSkipsMissing(t *testing.T) {
	path := writeFile(t, "config.json", `{"s3":{"host":"h","bucket":"b"}}`)

	cfg, err := LoadFirst("", filepath.Join(t.TempDir(), "missing.json"), path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.S3.Bucket)

	_, err = LoadFirst(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReferenceTargetDomainDefaultsToTable(t *testing.T) {
	assert.Equal(t, "products", ReferenceTarget{Table: "products", Column: "image_url"}.DomainName())
	assert.Equal(t, "portfolio", ReferenceTarget{Domain: " portfolio ", Table: "items", Column: "cover"}.DomainName())
}
