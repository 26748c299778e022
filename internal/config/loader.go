package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/cms/internal/logging"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadImport reads only the import and logging settings.
// The CLI uses it for dry runs that never touch the database.
func LoadImport() (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(&cfg.Import).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := loadStruct(reflect.ValueOf(&cfg.Logging).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if errs := cfg.validateImport(); len(errs) > 0 {
		return nil, fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "SECURITY_API_KEYS is required when SECURITY_REQUIRE_API_KEY is set")
	}
	if c.Security.RateLimit <= 0 {
		errs = append(errs, "SECURITY_RATE_LIMIT must be positive")
	}

	errs = append(errs, c.validateImport()...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateImport checks import bounds and logging options. Layout names and
// policies are parsed by core.NewService, which owns their values.
func (c *Config) validateImport() []string {
	im := c.Import
	checks := []struct {
		ok  bool
		msg string
	}{
		{im.BatchSize > 0, "IMPORT_BATCH_SIZE must be positive"},
		{im.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive"},
		{im.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive"},
		{im.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive"},
		{im.Timeout > 0, "IMPORT_TIMEOUT must be positive"},
		{im.HeaderRows >= 0, "IMPORT_HEADER_ROWS must be non-negative"},
		{len(im.DateFormats) > 0, "IMPORT_DATE_FORMATS must list at least one format"},
	}

	var errs []string
	for _, check := range checks {
		if !check.ok {
			errs = append(errs, check.msg)
		}
	}
	if err := logging.CheckLevel(c.Logging.Level); err != nil {
		errs = append(errs, "LOG_LEVEL: "+err.Error())
	}
	if err := logging.CheckFormat(c.Logging.Format); err != nil {
		errs = append(errs, "LOG_FORMAT: "+err.Error())
	}
	return errs
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {BatchSize: %d, Layout: %q, ReferencePolicy: %q, CommitPolicy: %q}, ",
		c.Import.BatchSize, c.Import.Layout, c.Import.ReferencePolicy, c.Import.CommitPolicy))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
