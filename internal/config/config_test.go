package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfigFile(t, `
listen: ":9000"
database:
  dsn: "file:test.db"
jwt:
  secret: "file-secret"
  expiry-hours: 12
redis:
  addr: "localhost:6379"
log:
  level: "debug"
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load config: %v", errLoad)
	}
	if cfg.Listen != ":9000" || cfg.Database.DSN != "file:test.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.JWT.Secret != "file-secret" || cfg.JWT.Expiry() != 12*time.Hour {
		t.Fatalf("unexpected jwt config: %+v", cfg.JWT)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected ancillary config: %+v", cfg)
	}
}

func TestLoadAppliesDefaultsAndEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: "file:from-file.db"
jwt:
  secret: "file-secret"
`)
	t.Setenv("B2BQUOTA_DSN", "postgres://env/db")
	t.Setenv("B2BQUOTA_JWT_SECRET", "env-secret")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load config: %v", errLoad)
	}
	if cfg.Listen != ":8318" {
		t.Fatalf("expected default listen, got %q", cfg.Listen)
	}
	if cfg.Database.DSN != "postgres://env/db" {
		t.Fatalf("expected env DSN override, got %q", cfg.Database.DSN)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("expected env secret override, got %q", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiry() != 24*time.Hour {
		t.Fatalf("expected default expiry 24h, got %v", cfg.JWT.Expiry())
	}
}

func TestLoadRejectsMissingRequiredValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "missing dsn", content: "jwt:\n  secret: \"s\"\n"},
		{name: "missing jwt secret", content: "database:\n  dsn: \"file:test.db\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.content)
			if _, errLoad := Load(path); errLoad == nil {
				t.Fatal("expected load failure")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, errLoad := Load(filepath.Join(t.TempDir(), "absent.yaml")); errLoad == nil {
		t.Fatal("expected load failure for missing file")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("explicit.yaml"); got != "explicit.yaml" {
		t.Fatalf("expected explicit path, got %q", got)
	}

	t.Setenv("B2BQUOTA_CONFIG", "/etc/b2bquota/config.yaml")
	if got := ResolveConfigPath(""); got != "/etc/b2bquota/config.yaml" {
		t.Fatalf("expected env path, got %q", got)
	}

	t.Setenv("B2BQUOTA_CONFIG", "")
	if got := ResolveConfigPath(" "); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
}
