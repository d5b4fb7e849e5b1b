package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coolbeans/regparser/pkg/profile"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regparser.yaml")
	content := "profile_dir: /etc/regparser/profiles\nlog_format: json\nworkers: 8\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProfileDir != "/etc/regparser/profiles" || cfg.LogFormat != "json" || cfg.Workers != 8 {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.Addr != Default().Addr {
		t.Errorf("unset field Addr = %q, want default", cfg.Addr)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [1"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regparser.yaml")
	if err := os.WriteFile(path, []byte("workers: 8\naddr: \":9000\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("REGPARSER_WORKERS", "2")
	t.Setenv("REGPARSER_SUPPLEMENT", "II")
	t.Setenv("REGPARSER_MAX_UPLOAD_BYTES", "2048")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want env value 2", cfg.Workers)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want file value", cfg.Addr)
	}
	if cfg.SupplementID != "II" || cfg.MaxUploadBytes != 2048 {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoadEnvInvalidNumber(t *testing.T) {
	t.Setenv("REGPARSER_WORKERS", "many")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "REGPARSER_WORKERS") {
		t.Errorf("Load() error = %v, want REGPARSER_WORKERS error", err)
	}
}

func TestValidateRejectsZeroLimitsFromEnv(t *testing.T) {
	t.Setenv("REGPARSER_MAX_UPLOAD_BYTES", "0")
	t.Setenv("REGPARSER_WORKERS", "0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted zero upload limit and workers")
	}
	for _, field := range []string{"MaxUploadBytes", "Workers"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Validate() error = %q, want %s named", err, field)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, true},
		{"negative workers", func(c *Config) { c.Workers = -2 }, true},
		{"negative upload limit", func(c *Config) { c.MaxUploadBytes = -1 }, true},
		{"bad supplement", func(c *Config) { c.SupplementID = "Q" }, true},
		{"empty profile", func(c *Config) { c.Profile = "" }, true},
		{"empty addr", func(c *Config) { c.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSupplementFor(t *testing.T) {
	cfg := Default()
	cfg.SupplementID = "III"

	own := profile.Default()
	own.SupplementID = "II"
	if got := cfg.SupplementFor(own); got != "II" {
		t.Errorf("SupplementFor(profile with id) = %q, want II", got)
	}

	bare := profile.Default()
	bare.SupplementID = ""
	if got := cfg.SupplementFor(bare); got != "III" {
		t.Errorf("SupplementFor(profile without id) = %q, want III", got)
	}
	if got := cfg.SupplementFor(nil); got != "III" {
		t.Errorf("SupplementFor(nil) = %q, want III", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "part", "1005")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"part":"1005"`) {
		t.Errorf("JSON log = %q", out)
	}
}
