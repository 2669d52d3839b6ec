package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.HopRadius != 1 {
		t.Errorf("HopRadius = %d, want 1", cfg.HopRadius)
	}
	if cfg.MaxConcurrency < 1 {
		t.Error("MaxConcurrency should be positive")
	}
	if len(cfg.EntryPoints) == 0 {
		t.Error("EntryPoints should not be empty")
	}
	if cfg.PathAliases["@/"] != "src/" {
		t.Errorf("PathAliases[@/] = %q, want src/", cfg.PathAliases["@/"])
	}
	if cfg.Sink.Kind != "file" {
		t.Errorf("Sink.Kind = %q, want file", cfg.Sink.Kind)
	}
	if !cfg.Ledger.Enabled {
		t.Error("Ledger should be enabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad version", func(c *Config) { c.Version = 99 }, "version"},
		{"empty root", func(c *Config) { c.RootDirectory = " " }, "rootDirectory"},
		{"missing root", func(c *Config) { c.RootDirectory = filepath.Join(root, "nope") }, "rootDirectory"},
		{"root is file", func(c *Config) { c.RootDirectory = file }, "rootDirectory"},
		{"no includes", func(c *Config) { c.IncludeGlobs = nil }, "includeGlobs"},
		{"no entry points", func(c *Config) { c.EntryPoints = nil }, "entryPoints"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "maxConcurrency"},
		{"negative radius", func(c *Config) { c.HopRadius = -1 }, "hopRadius"},
		{"negative log backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging"},
		{"empty alias", func(c *Config) { c.PathAliases = map[string]string{"~/": ""} }, "pathAliases"},
		{"s3 without bucket", func(c *Config) { c.Sink.Kind = "s3"; c.Sink.S3.Endpoint = "localhost:9000" }, "sink.s3"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "ftp" }, "sink.kind"},
		{"empty backup dir is allowed", func(c *Config) { c.BackupTargetDirectory = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RootDirectory = root
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "version", Message: "unsupported version 99"}
	want := "config error in field 'version': unsupported version 99"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.RootDirectory != filepath.Join(tmpDir, ".") {
		t.Errorf("RootDirectory = %q, want %q", cfg.RootDirectory, tmpDir)
	}
	if cfg.HopRadius != 1 {
		t.Errorf("HopRadius = %d, want 1", cfg.HopRadius)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ".archscan")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}

	configContent := `{
		"version": 1,
		"rootDirectory": "web",
		"entryPoints": ["web/app.ts"],
		"hopRadius": 3,
		"maxConcurrency": 8,
		"sink": {"kind": "file", "compress": true}
	}`
	if err := os.WriteFile(filepath.Join(stateDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RootDirectory != filepath.Join(tmpDir, "web") {
		t.Errorf("RootDirectory = %q", cfg.RootDirectory)
	}
	if len(cfg.EntryPoints) != 1 || cfg.EntryPoints[0] != "web/app.ts" {
		t.Errorf("EntryPoints = %v", cfg.EntryPoints)
	}
	if cfg.HopRadius != 3 || cfg.MaxConcurrency != 8 {
		t.Errorf("HopRadius/MaxConcurrency = %d/%d", cfg.HopRadius, cfg.MaxConcurrency)
	}
	if !cfg.Sink.Compress {
		t.Error("Sink.Compress should be true")
	}
	// Unset keys keep defaults
	if len(cfg.IncludeGlobs) == 0 {
		t.Error("IncludeGlobs should fall back to defaults")
	}
}

func TestLoadConfig_AliasCasePreserved(t *testing.T) {
	want := map[string]string{"@UI/": "src/ui/", "~Lib": "src/lib"}

	tests := []struct {
		file    string
		content string
	}{
		{"config.json", `{"pathAliases": {"@UI/": "src/ui/", "~Lib": "src/lib"}}`},
		{"config.yaml", "pathAliases:\n  \"@UI/\": src/ui/\n  \"~Lib\": src/lib\n"},
		{"config.toml", "[pathAliases]\n\"@UI/\" = \"src/ui/\"\n\"~Lib\" = \"src/lib\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			tmpDir := t.TempDir()
			stateDir := filepath.Join(tmpDir, ".archscan")
			if err := os.MkdirAll(stateDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(stateDir, tt.file), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadConfig(tmpDir)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if !reflect.DeepEqual(cfg.PathAliases, want) {
				t.Errorf("PathAliases = %v, want %v", cfg.PathAliases, want)
			}
		})
	}
}

func TestLoadConfig_AliasesDefaultWhenUnset(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ".archscan")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.json"), []byte(`{"hopRadius": 2}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.PathAliases["@/"] != "src/" {
		t.Errorf("PathAliases = %v, want the default @/ alias", cfg.PathAliases)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("ARCHSCAN_HOPRADIUS", "2")
	t.Setenv("ARCHSCAN_SINK_S3_BUCKET", "reports")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HopRadius != 2 {
		t.Errorf("HopRadius = %d, want 2", cfg.HopRadius)
	}
	if cfg.Sink.S3.Bucket != "reports" {
		t.Errorf("Sink.S3.Bucket = %q, want reports", cfg.Sink.S3.Bucket)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ".archscan")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(tmpDir); err == nil {
		t.Error("LoadConfig() should fail on malformed config")
	}
}

func TestConfig_Save(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.HopRadius = 4
	cfg.BackupTargetDirectory = "/var/backups/web"

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".archscan", "config.json")); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}

	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if loaded.HopRadius != 4 {
		t.Errorf("HopRadius = %d, want 4", loaded.HopRadius)
	}
	if loaded.BackupTargetDirectory != "/var/backups/web" {
		t.Errorf("BackupTargetDirectory = %q", loaded.BackupTargetDirectory)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RootDirectory = filepath.Join("repo")

	if got := cfg.ResolvePath("policy.toml"); got != filepath.Join("repo", "policy.toml") {
		t.Errorf("ResolvePath(relative) = %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "etc", "policy.toml")
	if got := cfg.ResolvePath(abs); got != abs {
		t.Errorf("ResolvePath(absolute) = %q", got)
	}
	if got := cfg.ResolvePath(""); got != "" {
		t.Errorf("ResolvePath(empty) = %q", got)
	}
}
