package mockview

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/mockview/pkg/interview"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Server        ServerConfig        `mapstructure:"server"`
	Interview     InterviewConfig     `mapstructure:"interview"`
	Coach         CoachConfig         `mapstructure:"coach"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Archive       VendorConfig        `mapstructure:"archive"`
	Events        VendorConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type ServerConfig struct {
	Addr              string   `mapstructure:"addr"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	StaticDir         string   `mapstructure:"static_dir"`
	PlaybackTimeoutMS int      `mapstructure:"playback_timeout_ms"`
	DrainTimeoutMS    int      `mapstructure:"drain_timeout_ms"`
}

type InterviewConfig struct {
	MaxQuestions      int    `mapstructure:"max_questions"`
	TriggerMode       string `mapstructure:"trigger_mode"`
	FollowUpTimeoutMS int    `mapstructure:"followup_timeout_ms"`
	ReportTimeoutMS   int    `mapstructure:"report_timeout_ms"`
}

type CoachConfig struct {
	RubricPath string `mapstructure:"rubric_path"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	RetentionDays int     `mapstructure:"retention_days"`
	SampleRate    float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadConfig reads a YAML config file, applies defaults, expands ${ENV}
// references and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig is the configuration used when no file is given: mock
// providers and no archive.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.playback_timeout_ms", 60000)
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("interview.max_questions", interview.DefaultMaxQuestions)
	v.SetDefault("interview.trigger_mode", interview.TriggerModeWord)
	v.SetDefault("interview.followup_timeout_ms", 20000)
	v.SetDefault("interview.report_timeout_ms", 90000)
	v.SetDefault("vendors.llm.provider", "mock")
	v.SetDefault("vendors.stt.provider", "browser")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("events.provider", "none")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if c.Interview.MaxQuestions < 1 {
		return fmt.Errorf("interview.max_questions must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.Interview.TriggerMode)) {
	case interview.TriggerModeWord, interview.TriggerModeSubstring:
	default:
		return fmt.Errorf("interview.trigger_mode must be %q or %q", interview.TriggerModeWord, interview.TriggerModeSubstring)
	}
	switch strings.ToLower(strings.TrimSpace(c.Archive.Provider)) {
	case "", "none", "file", "s3", "postgres":
	default:
		return fmt.Errorf("archive.provider %q is not supported", c.Archive.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(c.Events.Provider)) {
	case "", "none", "amqp":
	default:
		return fmt.Errorf("events.provider %q is not supported", c.Events.Provider)
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0,1]")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Archive.Settings = expandSettings(cfg.Archive.Settings)
	cfg.Events.Settings = expandSettings(cfg.Events.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
