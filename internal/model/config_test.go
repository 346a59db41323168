package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	be.Err(t, err, nil)
	be.Equal(t, cfg.Providers, DefaultProviders)
	be.Equal(t, cfg.IMAP.Port, 993)
	be.Equal(t, cfg.SMTP.Port, 465)
	be.Equal(t, cfg.IDScheme, IDSchemeSequence)
	be.Equal(t, cfg.Fallbacks.Sender, "[unknown sender]")
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "providers:\n  - example.org\nsmtp:\n  port: 587\n  starttls: true\nid_scheme: uid\npage_size: 25\nfallbacks:\n  subject: \"(none)\"\n"
	be.Err(t, os.WriteFile(path, []byte(raw), 0o600), nil)

	cfg, err := LoadConfig(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.Providers, []string{"example.org"})
	be.Equal(t, cfg.SMTP.Port, 587)
	be.True(t, cfg.SMTP.StartTLS)
	be.Equal(t, cfg.IMAP.Port, 993)
	be.Equal(t, cfg.IDScheme, IDSchemeUID)
	be.Equal(t, cfg.PageSize, 25)
	be.Equal(t, cfg.Fallbacks.Subject, "(none)")
	be.Equal(t, cfg.Fallbacks.Sender, "[unknown sender]")
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("MAILCLIENT_SMTP_PORT", "2525")
	t.Setenv("MAILCLIENT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	be.Err(t, err, nil)
	be.Equal(t, cfg.SMTP.Port, 2525)
	be.Equal(t, cfg.Log.Level, "debug")
}

func TestLoadConfigRejectsUnknownScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	be.Err(t, os.WriteFile(path, []byte("id_scheme: hash\n"), 0o600), nil)

	_, err := LoadConfig(path)
	be.Err(t, err, "unknown id_scheme")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.PageSize = 10

	be.Err(t, SaveConfig(path, cfg), nil)

	loaded, err := LoadConfig(path)
	be.Err(t, err, nil)
	be.Equal(t, loaded.PageSize, 10)
	be.Equal(t, loaded.Providers, cfg.Providers)
}
