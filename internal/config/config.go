package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"archscan/internal/paths"
)

// CurrentVersion is the config schema version this build reads.
const CurrentVersion = 1

// Config represents the complete archscan configuration
type Config struct {
	Version       int    `json:"version" mapstructure:"version"`
	RootDirectory string `json:"rootDirectory" mapstructure:"rootDirectory"`

	IncludeGlobs []string          `json:"includeGlobs" mapstructure:"includeGlobs"`
	ExcludeGlobs []string          `json:"excludeGlobs" mapstructure:"excludeGlobs"`
	TestGlobs    []string          `json:"testGlobs" mapstructure:"testGlobs"`
	EntryPoints  []string          `json:"entryPoints" mapstructure:"entryPoints"`
	PathAliases  map[string]string `json:"pathAliases" mapstructure:"pathAliases"`

	MaxConcurrency        int    `json:"maxConcurrency" mapstructure:"maxConcurrency"`
	MaxFileSizeBytes      int64  `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	BackupTargetDirectory string `json:"backupTargetDirectory" mapstructure:"backupTargetDirectory"`
	HopRadius             int    `json:"hopRadius" mapstructure:"hopRadius"`

	PolicyFile         string `json:"policyFile,omitempty" mapstructure:"policyFile"`
	RoutingTableFile   string `json:"routingTableFile,omitempty" mapstructure:"routingTableFile"`
	BackendCatalogFile string `json:"backendCatalogFile,omitempty" mapstructure:"backendCatalogFile"`

	Ledger  LedgerConfig  `json:"ledger" mapstructure:"ledger"`
	Sink    SinkConfig    `json:"sink" mapstructure:"sink"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LedgerConfig configures the append-only plan ledger
type LedgerConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path,omitempty" mapstructure:"path"`
}

// SinkConfig configures where exported reports go
type SinkConfig struct {
	// Kind is "file" or "s3"
	Kind     string   `json:"kind" mapstructure:"kind"`
	Dir      string   `json:"dir,omitempty" mapstructure:"dir"`
	Compress bool     `json:"compress" mapstructure:"compress"`
	S3       S3Config `json:"s3" mapstructure:"s3"`
}

// S3Config configures the S3-compatible report sink
type S3Config struct {
	Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Region    string `json:"region,omitempty" mapstructure:"region"`
	Bucket    string `json:"bucket,omitempty" mapstructure:"bucket"`
	Prefix    string `json:"prefix,omitempty" mapstructure:"prefix"`
	AccessKey string `json:"-" mapstructure:"accessKey"`
	SecretKey string `json:"-" mapstructure:"secretKey"`
	UseSSL    bool   `json:"useSSL" mapstructure:"useSSL"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
	File   bool   `json:"file" mapstructure:"file"`
	// MaxFileBytes rotates scan.log when a run starts with it at least this
	// large; 0 never rotates. MaxBackups rotated logs are kept.
	MaxFileBytes int64 `json:"maxFileBytes" mapstructure:"maxFileBytes"`
	MaxBackups   int   `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:       CurrentVersion,
		RootDirectory: ".",
		IncludeGlobs: []string{
			"**/*.{ts,tsx,js,jsx,mjs,cjs}",
			"**/*.{css,scss}",
		},
		ExcludeGlobs: []string{
			"**/node_modules/**",
			"**/dist/**",
			"**/build/**",
			"**/coverage/**",
			"**/*.d.ts",
		},
		TestGlobs: []string{
			"**/*.{test,spec}.{ts,tsx,js,jsx}",
			"**/__tests__/**/*.{ts,tsx,js,jsx}",
		},
		EntryPoints: []string{
			"src/main.{ts,tsx,js,jsx}",
			"src/index.{ts,tsx,js,jsx}",
		},
		PathAliases: map[string]string{
			"@/": "src/",
		},
		MaxConcurrency:        4,
		MaxFileSizeBytes:      1000000,
		BackupTargetDirectory: ".archscan/backups",
		HopRadius:             1,
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Sink: SinkConfig{
			Kind:     "file",
			Compress: false,
		},
		Logging: LoggingConfig{
			Format:       "human",
			Level:        "info",
			MaxFileBytes: 5 << 20,
			MaxBackups:   3,
		},
	}
}

// LoadConfig loads .archscan/config.{json,yaml,toml} from repoRoot, falling back
// to defaults when no file exists. ARCHSCAN_* environment variables override
// file values (e.g. ARCHSCAN_MAXCONCURRENCY, ARCHSCAN_SINK_S3_BUCKET).
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.AddConfigPath(paths.StateDir(repoRoot))
	v.SetEnvPrefix("ARCHSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if file := v.ConfigFileUsed(); file != "" {
		aliases, err := readAliases(file)
		if err != nil {
			return nil, err
		}
		if aliases != nil {
			cfg.PathAliases = aliases
		}
	}

	if !filepath.IsAbs(cfg.RootDirectory) {
		cfg.RootDirectory = filepath.Join(repoRoot, cfg.RootDirectory)
	}
	return &cfg, nil
}

// readAliases re-reads pathAliases from the config file. Viper lowercases
// map keys, and alias prefixes are matched case-sensitively against import
// specifiers.
func readAliases(file string) (map[string]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var raw struct {
		PathAliases map[string]string `json:"pathAliases" yaml:"pathAliases" toml:"pathAliases"`
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw.PathAliases, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("rootDirectory", d.RootDirectory)
	v.SetDefault("includeGlobs", d.IncludeGlobs)
	v.SetDefault("excludeGlobs", d.ExcludeGlobs)
	v.SetDefault("testGlobs", d.TestGlobs)
	v.SetDefault("entryPoints", d.EntryPoints)
	v.SetDefault("pathAliases", d.PathAliases)
	v.SetDefault("maxConcurrency", d.MaxConcurrency)
	v.SetDefault("maxFileSizeBytes", d.MaxFileSizeBytes)
	v.SetDefault("backupTargetDirectory", d.BackupTargetDirectory)
	v.SetDefault("hopRadius", d.HopRadius)
	v.SetDefault("ledger.enabled", d.Ledger.Enabled)
	v.SetDefault("sink.kind", d.Sink.Kind)
	v.SetDefault("sink.compress", d.Sink.Compress)
	v.SetDefault("sink.s3.endpoint", "")
	v.SetDefault("sink.s3.bucket", "")
	v.SetDefault("sink.s3.accessKey", "")
	v.SetDefault("sink.s3.secretKey", "")
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxFileBytes", d.Logging.MaxFileBytes)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// Save writes the configuration to .archscan/config.json
func (c *Config) Save(repoRoot string) error {
	dir, err := paths.EnsureStateDir(repoRoot)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// ResolvePath makes p absolute relative to the root directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDirectory, p)
}

// Validate checks structural validity. It does not require a backup directory;
// that is only mandatory once a run has archival-eligible components.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if strings.TrimSpace(c.RootDirectory) == "" {
		return &ConfigError{Field: "rootDirectory", Message: "root directory is required"}
	}
	info, err := os.Stat(c.RootDirectory)
	if err != nil {
		return &ConfigError{Field: "rootDirectory", Message: "root directory cannot be resolved: " + err.Error()}
	}
	if !info.IsDir() {
		return &ConfigError{Field: "rootDirectory", Message: "root directory is not a directory"}
	}
	if len(c.IncludeGlobs) == 0 {
		return &ConfigError{Field: "includeGlobs", Message: "at least one include glob is required"}
	}
	if len(c.EntryPoints) == 0 {
		return &ConfigError{Field: "entryPoints", Message: "at least one entry point is required"}
	}
	if c.MaxConcurrency < 1 {
		return &ConfigError{Field: "maxConcurrency", Message: "must be at least 1"}
	}
	if c.HopRadius < 0 {
		return &ConfigError{Field: "hopRadius", Message: "must not be negative"}
	}
	if c.Logging.MaxFileBytes < 0 || c.Logging.MaxBackups < 0 {
		return &ConfigError{Field: "logging", Message: "log rotation limits must not be negative"}
	}
	for prefix, target := range c.PathAliases {
		if prefix == "" || target == "" {
			return &ConfigError{Field: "pathAliases", Message: "alias prefix and target must be non-empty"}
		}
	}
	switch c.Sink.Kind {
	case "", "file":
	case "s3":
		if c.Sink.S3.Endpoint == "" || c.Sink.S3.Bucket == "" {
			return &ConfigError{Field: "sink.s3", Message: "endpoint and bucket are required for the s3 sink"}
		}
	default:
		return &ConfigError{Field: "sink.kind", Message: "unknown sink kind " + c.Sink.Kind}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
