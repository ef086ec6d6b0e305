package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "codespot"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CODESPOT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the first codespot.yaml found on the search path, applies
// environment overrides and validates the result. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
	l.prepare()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.prepare()
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// BindFlags binds command-line flags to configuration keys, e.g.
// {"video-root": "paths.video_root"}. Unknown flag names are an error.
func (l *Loader) BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %s", flag, key)
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) prepare() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	l.setDefaults()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key of DefaultConfig so that environment
// variables are honoured for keys absent from the file.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("paths.video_root", d.Paths.VideoRoot)
	l.v.SetDefault("paths.output", d.Paths.Output)

	l.v.SetDefault("detection.url", d.Detection.URL)
	l.v.SetDefault("detection.timeout", d.Detection.Timeout)
	l.v.SetDefault("detection.min_score", d.Detection.MinScore)

	l.v.SetDefault("recognition.backend", d.Recognition.Backend)
	l.v.SetDefault("recognition.url", d.Recognition.URL)
	l.v.SetDefault("recognition.timeout", d.Recognition.Timeout)
	l.v.SetDefault("recognition.language", d.Recognition.Language)
	l.v.SetDefault("recognition.whitelist", d.Recognition.Whitelist)
	l.v.SetDefault("recognition.psm", d.Recognition.PageSegMode)
	l.v.SetDefault("recognition.tessdata_dir", d.Recognition.TessdataDir)
	l.v.SetDefault("recognition.fold_width", d.Recognition.FoldWidth)

	l.v.SetDefault("orientation.mode", d.Orientation.Mode)
	l.v.SetDefault("orientation.vertical_max_aspect", d.Orientation.VerticalMaxAspect)
	l.v.SetDefault("orientation.vertical_max_width", d.Orientation.VerticalMaxWidth)
	l.v.SetDefault("orientation.horizontal_min_aspect", d.Orientation.HorizontalMinAspect)
	l.v.SetDefault("orientation.horizontal_max_height", d.Orientation.HorizontalMaxHeight)
	l.v.SetDefault("orientation.horizontal_max_width", d.Orientation.HorizontalMaxWidth)

	l.v.SetDefault("cluster.eps", d.Cluster.Eps)
	l.v.SetDefault("cluster.padding", d.Cluster.Padding)

	l.v.SetDefault("segmentation.threshold", d.Segmentation.Threshold)
	l.v.SetDefault("segmentation.margin", d.Segmentation.Margin)
	l.v.SetDefault("segmentation.char_width_min", d.Segmentation.CharWidthMin)
	l.v.SetDefault("segmentation.char_width_max", d.Segmentation.CharWidthMax)
	l.v.SetDefault("segmentation.char_height_min", d.Segmentation.CharHeightMin)
	l.v.SetDefault("segmentation.char_height_max", d.Segmentation.CharHeightMax)

	l.v.SetDefault("code.regex", d.Code.Regex)
	l.v.SetDefault("pipeline.max_workers", d.Pipeline.MaxWorkers)

	l.v.SetDefault("ingress.kind", d.Ingress.Kind)
	l.v.SetDefault("ingress.url", d.Ingress.URL)
	l.v.SetDefault("ingress.exchange", d.Ingress.Exchange)
	l.v.SetDefault("ingress.routing_key", d.Ingress.RoutingKey)
	l.v.SetDefault("ingress.queue", d.Ingress.Queue)
	l.v.SetDefault("ingress.channel", d.Ingress.Channel)
	l.v.SetDefault("ingress.reconnect_wait", d.Ingress.ReconnectWait)

	l.v.SetDefault("index.url", d.Index.URL)
	l.v.SetDefault("index.pattern", d.Index.Pattern)
	l.v.SetDefault("index.username", d.Index.Username)
	l.v.SetDefault("index.password", d.Index.Password)
	l.v.SetDefault("index.insecure_skip_verify", d.Index.InsecureSkipVerify)
	l.v.SetDefault("index.timeout", d.Index.Timeout)
	l.v.SetDefault("index.delay", d.Index.Delay)
	l.v.SetDefault("index.retry_count", d.Index.RetryCount)
	l.v.SetDefault("index.retry_wait", d.Index.RetryWait)
	l.v.SetDefault("index.retry_max_wait", d.Index.RetryMaxWait)
	l.v.SetDefault("index.dead_letter_dir", d.Index.DeadLetterDir)

	l.v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)
	l.v.SetDefault("storage.max_open_conns", d.Storage.MaxOpenConns)
	l.v.SetDefault("storage.max_idle_conns", d.Storage.MaxIdleConns)
	l.v.SetDefault("storage.conn_max_lifetime", d.Storage.ConnMaxLifetime)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
	l.v.SetDefault("log.file", d.Log.File)
	l.v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)

	l.v.SetDefault("server.addr", d.Server.Addr)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
}

// ToYAML renders cfg as YAML.
func ToYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// GenerateDefaultConfigFile writes DefaultConfig as YAML. An existing file
// is only replaced when overwrite is set.
func GenerateDefaultConfigFile(filename string, overwrite bool) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if !overwrite {
		if _, err := os.Stat(filename); err == nil {
			return fmt.Errorf("%s already exists", filename)
		}
	}
	data, err := ToYAML(DefaultConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, data, 0o600)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
