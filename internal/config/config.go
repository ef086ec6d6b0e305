package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/codes"
	"github.com/MeKo-Tech/codespot/internal/index"
	"github.com/MeKo-Tech/codespot/internal/ingress"
	"github.com/MeKo-Tech/codespot/internal/logging"
	"github.com/MeKo-Tech/codespot/internal/orientation"
	"github.com/MeKo-Tech/codespot/internal/pipeline"
	"github.com/MeKo-Tech/codespot/internal/recognizer/tesseract"
	"github.com/MeKo-Tech/codespot/internal/storage"
)

// Recognition backends.
const (
	RecognitionHTTP      = "http"
	RecognitionTesseract = "tesseract"
)

// Config is the complete configuration of the codespot service. It is
// loaded once from file, environment and flags and not modified afterwards.
type Config struct {
	Paths        PathsConfig        `mapstructure:"paths" yaml:"paths" json:"paths"`
	Detection    DetectionConfig    `mapstructure:"detection" yaml:"detection" json:"detection"`
	Recognition  RecognitionConfig  `mapstructure:"recognition" yaml:"recognition" json:"recognition"`
	Orientation  OrientationConfig  `mapstructure:"orientation" yaml:"orientation" json:"orientation"`
	Cluster      ClusterConfig      `mapstructure:"cluster" yaml:"cluster" json:"cluster"`
	Segmentation SegmentationConfig `mapstructure:"segmentation" yaml:"segmentation" json:"segmentation"`
	Code         CodeConfig         `mapstructure:"code" yaml:"code" json:"code"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Ingress      IngressConfig      `mapstructure:"ingress" yaml:"ingress" json:"ingress"`
	Index        IndexConfig        `mapstructure:"index" yaml:"index" json:"index"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage" json:"storage"`
	Log          LogConfig          `mapstructure:"log" yaml:"log" json:"log"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server" json:"server"`
}

// PathsConfig locates the camera archive and the output directory.
type PathsConfig struct {
	VideoRoot string `mapstructure:"video_root" yaml:"video_root" json:"video_root"`
	Output    string `mapstructure:"output" yaml:"output" json:"output"`
}

// DetectionConfig configures the text detection service.
type DetectionConfig struct {
	URL      string        `mapstructure:"url" yaml:"url" json:"url"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MinScore float64       `mapstructure:"min_score" yaml:"min_score" json:"min_score"`
}

// RecognitionConfig configures the text recognition backend.
type RecognitionConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend" json:"backend"`
	URL     string        `mapstructure:"url" yaml:"url" json:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	// Tesseract settings.
	Language    string `mapstructure:"language" yaml:"language" json:"language"`
	Whitelist   string `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	PageSegMode int    `mapstructure:"psm" yaml:"psm" json:"psm"`
	// TessdataDir overrides TESSDATA_PREFIX when set.
	TessdataDir string `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`
	// FoldWidth maps full-width characters to their ASCII forms.
	FoldWidth bool `mapstructure:"fold_width" yaml:"fold_width" json:"fold_width"`
}

// OrientationConfig holds the orientation decision table.
type OrientationConfig struct {
	Mode                string  `mapstructure:"mode" yaml:"mode" json:"mode"`
	VerticalMaxAspect   float64 `mapstructure:"vertical_max_aspect" yaml:"vertical_max_aspect" json:"vertical_max_aspect"`
	VerticalMaxWidth    float64 `mapstructure:"vertical_max_width" yaml:"vertical_max_width" json:"vertical_max_width"`
	HorizontalMinAspect float64 `mapstructure:"horizontal_min_aspect" yaml:"horizontal_min_aspect" json:"horizontal_min_aspect"`
	HorizontalMaxHeight float64 `mapstructure:"horizontal_max_height" yaml:"horizontal_max_height" json:"horizontal_max_height"`
	HorizontalMaxWidth  float64 `mapstructure:"horizontal_max_width" yaml:"horizontal_max_width" json:"horizontal_max_width"`
}

// ClusterConfig controls region merging and crop padding.
type ClusterConfig struct {
	Eps     float64 `mapstructure:"eps" yaml:"eps" json:"eps"`
	Padding float64 `mapstructure:"padding" yaml:"padding" json:"padding"`
}

// SegmentationConfig bounds the characters of vertical codes.
type SegmentationConfig struct {
	Threshold     int `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Margin        int `mapstructure:"margin" yaml:"margin" json:"margin"`
	CharWidthMin  int `mapstructure:"char_width_min" yaml:"char_width_min" json:"char_width_min"`
	CharWidthMax  int `mapstructure:"char_width_max" yaml:"char_width_max" json:"char_width_max"`
	CharHeightMin int `mapstructure:"char_height_min" yaml:"char_height_min" json:"char_height_min"`
	CharHeightMax int `mapstructure:"char_height_max" yaml:"char_height_max" json:"char_height_max"`
}

// CodeConfig holds the code pattern.
type CodeConfig struct {
	Regex string `mapstructure:"regex" yaml:"regex" json:"regex"`
}

// PipelineConfig contains processing settings.
type PipelineConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// IngressConfig selects the broker.
type IngressConfig struct {
	Kind          string        `mapstructure:"kind" yaml:"kind" json:"kind"`
	URL           string        `mapstructure:"url" yaml:"url" json:"url"`
	Exchange      string        `mapstructure:"exchange" yaml:"exchange" json:"exchange"`
	RoutingKey    string        `mapstructure:"routing_key" yaml:"routing_key" json:"routing_key"`
	Queue         string        `mapstructure:"queue" yaml:"queue" json:"queue"`
	Channel       string        `mapstructure:"channel" yaml:"channel" json:"channel"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait" json:"reconnect_wait"`
}

// IndexConfig configures the search index update. An empty URL disables it.
type IndexConfig struct {
	URL                string        `mapstructure:"url" yaml:"url" json:"url"`
	Pattern            string        `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Username           string        `mapstructure:"username" yaml:"username" json:"username"`
	Password           string        `mapstructure:"password" yaml:"password" json:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Delay              time.Duration `mapstructure:"delay" yaml:"delay" json:"delay"`
	RetryCount         int           `mapstructure:"retry_count" yaml:"retry_count" json:"retry_count"`
	RetryWait          time.Duration `mapstructure:"retry_wait" yaml:"retry_wait" json:"retry_wait"`
	RetryMaxWait       time.Duration `mapstructure:"retry_max_wait" yaml:"retry_max_wait" json:"retry_max_wait"`
	DeadLetterDir      string        `mapstructure:"dead_letter_dir" yaml:"dead_letter_dir" json:"dead_letter_dir"`
}

// StorageConfig configures the optional PostgreSQL mirror.
type StorageConfig struct {
	PostgresURL     string        `mapstructure:"postgres_url" yaml:"postgres_url" json:"postgres_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
}

// ServerConfig configures the metrics and health endpoint.
type ServerConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr            string        `mapstructure:"addr" yaml:"addr" json:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	orient := orientation.DefaultConfig()
	asm := assembler.DefaultConfig()
	seg := asm.Segmentation
	ix := index.DefaultConfig()
	in := ingress.DefaultConfig()
	pg := storage.DefaultPostgresConfig()
	lg := logging.DefaultConfig()
	tess := tesseract.DefaultOptions()

	return Config{
		Paths: PathsConfig{
			VideoRoot: "/data/video",
			Output:    "/data/output",
		},
		Detection: DetectionConfig{
			URL:      "http://localhost:8501/detect",
			Timeout:  5 * time.Second,
			MinScore: 0.8,
		},
		Recognition: RecognitionConfig{
			Backend:     RecognitionHTTP,
			URL:         "http://localhost:8502/recognize",
			Timeout:     2 * time.Second,
			Language:    tess.Language,
			Whitelist:   tess.Whitelist,
			PageSegMode: tess.PageSegMode,
		},
		Orientation: OrientationConfig{
			Mode:                string(orient.Mode),
			VerticalMaxAspect:   orient.VerticalMaxAspect,
			VerticalMaxWidth:    orient.VerticalMaxWidth,
			HorizontalMinAspect: orient.HorizontalMinAspect,
			HorizontalMaxHeight: orient.HorizontalMaxHeight,
			HorizontalMaxWidth:  orient.HorizontalMaxWidth,
		},
		Cluster: ClusterConfig{
			Eps:     50,
			Padding: asm.Padding,
		},
		Segmentation: SegmentationConfig{
			Threshold:     int(seg.Threshold),
			Margin:        seg.Margin,
			CharWidthMin:  seg.CharMinWidth,
			CharWidthMax:  seg.CharMaxWidth,
			CharHeightMin: seg.CharMinHeight,
			CharHeightMax: seg.CharMaxHeight,
		},
		Code:     CodeConfig{Regex: codes.DefaultPattern},
		Pipeline: PipelineConfig{MaxWorkers: runtime.NumCPU()},
		Ingress: IngressConfig{
			Kind:          in.Kind,
			URL:           in.URL,
			Exchange:      in.Exchange,
			RoutingKey:    in.RoutingKey,
			Queue:         in.Queue,
			Channel:       in.Channel,
			ReconnectWait: in.ReconnectWait,
		},
		Index: IndexConfig{
			Pattern:      ix.Pattern,
			Timeout:      ix.Timeout,
			Delay:        ix.Delay,
			RetryCount:   ix.RetryCount,
			RetryWait:    ix.RetryWait,
			RetryMaxWait: ix.RetryMaxWait,
		},
		Storage: StorageConfig{
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime,
		},
		Log: LogConfig{
			Level:      lg.Level,
			Format:     lg.Format,
			MaxSizeMB:  lg.MaxSizeMB,
			MaxBackups: lg.MaxBackups,
		},
		Server: ServerConfig{
			Addr:            ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks the settings every command needs. Broker and index
// settings are checked by ValidateListen and ToIndexConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.Paths.VideoRoot == "" {
		errs = append(errs, errors.New("paths.video_root is required"))
	}
	if c.Paths.Output == "" {
		errs = append(errs, errors.New("paths.output is required"))
	}
	if c.Detection.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("detection.timeout must be positive: %s", c.Detection.Timeout))
	}
	switch c.Recognition.Backend {
	case RecognitionHTTP, RecognitionTesseract:
	default:
		errs = append(errs, fmt.Errorf("recognition.backend %q (must be one of: %s, %s)",
			c.Recognition.Backend, RecognitionHTTP, RecognitionTesseract))
	}
	if c.Recognition.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("recognition.timeout must be positive: %s", c.Recognition.Timeout))
	}
	if c.Segmentation.Threshold < 0 || c.Segmentation.Threshold > 255 {
		errs = append(errs, fmt.Errorf("segmentation.threshold must be in [0,255]: %d", c.Segmentation.Threshold))
	}
	if err := c.ToPipelineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ToLoggingConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Index.URL != "" {
		if err := c.ToIndexConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateListen additionally checks the broker settings.
func (c *Config) ValidateListen() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.ToIngressConfig().Validate()
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.MinDetectionScore = c.Detection.MinScore
	cfg.ClusterEps = c.Cluster.Eps
	cfg.CodePattern = c.Code.Regex
	cfg.MaxWorkers = c.Pipeline.MaxWorkers
	cfg.Orientation = c.toOrientationConfig()
	cfg.Assembler = c.toAssemblerConfig()
	return cfg
}

func (c *Config) toOrientationConfig() orientation.Config {
	return orientation.Config{
		Mode:                orientation.Mode(strings.ToLower(strings.TrimSpace(c.Orientation.Mode))),
		VerticalMaxAspect:   c.Orientation.VerticalMaxAspect,
		VerticalMaxWidth:    c.Orientation.VerticalMaxWidth,
		HorizontalMinAspect: c.Orientation.HorizontalMinAspect,
		HorizontalMaxHeight: c.Orientation.HorizontalMaxHeight,
		HorizontalMaxWidth:  c.Orientation.HorizontalMaxWidth,
	}
}

func (c *Config) toAssemblerConfig() assembler.Config {
	s := c.Segmentation
	threshold := min(max(s.Threshold, 0), 255)
	return assembler.Config{
		Padding: c.Cluster.Padding,
		Segmentation: assembler.SegmentationConfig{
			Threshold:     uint8(threshold), //nolint:gosec // G115: clamped above
			Margin:        s.Margin,
			CharMinWidth:  s.CharWidthMin,
			CharMaxWidth:  s.CharWidthMax,
			CharMinHeight: s.CharHeightMin,
			CharMaxHeight: s.CharHeightMax,
		},
	}
}

// ToTesseractOptions converts the recognition settings for the Tesseract backend.
func (c *Config) ToTesseractOptions() tesseract.Options {
	return tesseract.Options{
		Language:    c.Recognition.Language,
		Whitelist:   c.Recognition.Whitelist,
		PageSegMode: c.Recognition.PageSegMode,
		TessdataDir: c.Recognition.TessdataDir,
	}
}

// ToIngressConfig converts the broker settings.
func (c *Config) ToIngressConfig() ingress.Config {
	return ingress.Config{
		Kind:          c.Ingress.Kind,
		URL:           c.Ingress.URL,
		Exchange:      c.Ingress.Exchange,
		RoutingKey:    c.Ingress.RoutingKey,
		Queue:         c.Ingress.Queue,
		Channel:       c.Ingress.Channel,
		ReconnectWait: c.Ingress.ReconnectWait,
	}
}

// ToIndexConfig converts the search index settings.
func (c *Config) ToIndexConfig() index.Config {
	return index.Config{
		URL:                c.Index.URL,
		Pattern:            c.Index.Pattern,
		Username:           c.Index.Username,
		Password:           c.Index.Password,
		InsecureSkipVerify: c.Index.InsecureSkipVerify,
		Timeout:            c.Index.Timeout,
		Delay:              c.Index.Delay,
		RetryCount:         c.Index.RetryCount,
		RetryWait:          c.Index.RetryWait,
		RetryMaxWait:       c.Index.RetryMaxWait,
		DeadLetterDir:      c.Index.DeadLetterDir,
	}
}

// ToPostgresConfig converts the mirror settings.
func (c *Config) ToPostgresConfig() storage.PostgresConfig {
	return storage.PostgresConfig{
		URL:             c.Storage.PostgresURL,
		MaxOpenConns:    c.Storage.MaxOpenConns,
		MaxIdleConns:    c.Storage.MaxIdleConns,
		ConnMaxLifetime: c.Storage.ConnMaxLifetime,
	}
}

// ToLoggingConfig converts the log settings.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

const redacted = "******"

// Redacted returns a copy safe to print: passwords and URL credentials are masked.
func (c Config) Redacted() Config {
	if c.Index.Password != "" {
		c.Index.Password = redacted
	}
	c.Index.URL = redactURL(c.Index.URL)
	c.Ingress.URL = redactURL(c.Ingress.URL)
	c.Storage.PostgresURL = redactURL(c.Storage.PostgresURL)
	return c
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return u.String()
	}
	// url.UserPassword would percent-encode the mask.
	u.User = url.User(u.User.Username())
	user := u.User.String()
	return strings.Replace(u.String(), "//"+user+"@", "//"+user+":"+redacted+"@", 1)
}
