// Package config loads harness settings from a YAML file, a .env file and
// FORMHARNESS_* environment variables, in that order of precedence from
// lowest to highest.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formharness/internal/browser"
	"github.com/roach88/formharness/internal/harness"
)

// DefaultFile is read when no config path is given.
const DefaultFile = "formharness.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMHARNESS_"

// Config is the harness configuration.
type Config struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	Browser  Browser  `yaml:"browser"`
	Database Database `yaml:"database"`

	// Scenarios is the default scenarios directory.
	Scenarios string `yaml:"scenarios"`
	// Results receives screenshots and reports.
	Results string `yaml:"results"`
	// History is the run history database. Empty disables recording.
	History string `yaml:"history"`

	Parallel    int  `yaml:"parallel" validate:"gte=1,lte=32"`
	KeepGoing   bool `yaml:"keep_going"`
	Screenshots bool `yaml:"screenshots"`
}

// Browser selects and tunes the automation engine.
type Browser struct {
	Engine       string        `yaml:"engine" validate:"oneof=chromedp rod"`
	Headless     bool          `yaml:"headless"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	WindowWidth  int           `yaml:"window_width" validate:"gte=0"`
	WindowHeight int           `yaml:"window_height" validate:"gte=0"`
	ExecPath     string        `yaml:"exec_path"`
}

// Database is the connection to the database under test.
type Database struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite3 sqlite mysql postgres postgresql pgsql clickhouse"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	return &Config{
		User:        "Admin",
		Scenarios:   "scenarios",
		Results:     "results",
		History:     ".formharness/history.db",
		Parallel:    1,
		Screenshots: true,
		Browser: Browser{
			Engine:   browser.EngineChromedp,
			Headless: true,
			Timeout:  15 * time.Second,
		},
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// Path is the config file. Empty means DefaultFile, which may be absent.
	Path string
	// EnvFile is the dotenv file. Empty means ".env", which may be absent.
	EnvFile string
	// LookupEnv reads the process environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// NoValidate skips validation for callers that only need paths.
	NoValidate bool
}

// Load builds a validated configuration. The password is not required
// here; see EnsurePassword.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, required := opts.Path, true
	if path == "" {
		path, required = DefaultFile, false
	}
	if err := cfg.readFile(path, required); err != nil {
		return nil, err
	}

	envFile, requiredEnv := opts.EnvFile, true
	if envFile == "" {
		envFile, requiredEnv = ".env", false
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if requiredEnv || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[EnvPrefix+key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if opts.NoValidate {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"BASE_URL":     &c.BaseURL,
		"USER":         &c.User,
		"PASSWORD":     &c.Password,
		"DB_DRIVER":    &c.Database.Driver,
		"DB_DSN":       &c.Database.DSN,
		"BROWSER":      &c.Browser.Engine,
		"BROWSER_PATH": &c.Browser.ExecPath,
		"SCENARIOS":    &c.Scenarios,
		"RESULTS":      &c.Results,
		"HISTORY":      &c.History,
	}
	for key, dst := range strs {
		if v, ok := env(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"HEADLESS":    &c.Browser.Headless,
		"KEEP_GOING":  &c.KeepGoing,
		"SCREENSHOTS": &c.Screenshots,
	}
	for key, dst := range bools {
		if v, ok := env(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	if v, ok := env("PARALLEL"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPARALLEL: %w", EnvPrefix, err)
		}
		c.Parallel = n
	}
	if v, ok := env("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Browser.Timeout = d
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
}

// Validate checks field constraints and names offending keys by their
// YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", path))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", path, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// BrowserOptions converts the browser settings for browser.New.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Engine:        c.Browser.Engine,
		BaseURL:       c.BaseURL,
		Headless:      c.Browser.Headless,
		Timeout:       c.Browser.Timeout,
		WindowWidth:   c.Browser.WindowWidth,
		WindowHeight:  c.Browser.WindowHeight,
		ScreenshotDir: c.Results,
		ExecPath:      c.Browser.ExecPath,
	}
}

// HarnessConfig converts the run settings for a harness session.
func (c *Config) HarnessConfig() harness.Config {
	return harness.Config{
		User:        c.User,
		Password:    c.Password,
		KeepGoing:   c.KeepGoing,
		Screenshots: c.Screenshots,
	}
}

// String renders the configuration with the password masked.
func (c *Config) String() string {
	password := "(not set)"
	if c.Password != "" {
		password = "********"
	}
	return fmt.Sprintf(`base_url:  %s
user:      %s
password:  %s
browser:   %s (headless=%t, timeout=%s)
database:  %s
scenarios: %s
history:   %s
parallel:  %d`,
		c.BaseURL, c.User, password,
		c.Browser.Engine, c.Browser.Headless, c.Browser.Timeout,
		c.Database.Driver, c.Scenarios, c.History, c.Parallel)
}
