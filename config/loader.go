package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/screenwise/screenwise/automation"
)

// Loader loads the configuration tree. Precedence: defaults, YAML file,
// environment.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("screenwise.yaml").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the SCREENWISE env prefix and the
// standard validator installed.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SCREENWISE",
		validators: []func(*Config) error{Validate},
	}
}

// WithConfigPath sets the YAML file path. A missing file is not an error;
// defaults and environment still apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment-variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration tree.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// loadFromEnv walks the config tree and overrides fields from environment
// variables. Keys derive from the yaml tags, upper-cased and joined with
// underscores: SCREENWISE_AUTOMATION_STABILITY_THRESHOLD and so on. Fields
// tagged yaml:"-" are never read from the environment.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		tag := fieldType.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		tag = strings.Split(tag, ",")[0]
		key := prefix + "_" + strings.ToUpper(tag)

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := setFieldsFromEnv(field, key); err != nil {
				return err
			}
			continue
		}

		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// Validate checks cross-field constraints that YAML parsing cannot.
func Validate(cfg *Config) error {
	switch cfg.Automation.Mode {
	case automation.ModeTimed, automation.ModeRemote, automation.ModeHybrid:
	default:
		return fmt.Errorf("unknown trigger mode %q", cfg.Automation.Mode)
	}

	if cfg.Automation.Sensitivity < 1 || cfg.Automation.Sensitivity > 100 {
		return fmt.Errorf("sensitivity %d out of range [1,100]", cfg.Automation.Sensitivity)
	}
	if cfg.Automation.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", cfg.Automation.Interval)
	}
	if cfg.Automation.ConfidenceThreshold < 0 || cfg.Automation.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.2f out of range [0,1]", cfg.Automation.ConfidenceThreshold)
	}
	if cfg.Automation.MaxSelectAttempts < 1 {
		return fmt.Errorf("max select attempts must be at least 1, got %d", cfg.Automation.MaxSelectAttempts)
	}

	switch cfg.Capture.Backend {
	case "ffmpeg", "dir":
	default:
		return fmt.Errorf("unknown capture backend %q", cfg.Capture.Backend)
	}
	if cfg.Capture.Backend == "dir" && cfg.Capture.Directory == "" {
		return fmt.Errorf("capture backend %q requires a directory", cfg.Capture.Backend)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}

	return nil
}
