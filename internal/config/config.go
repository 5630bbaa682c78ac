// Package config assembles the service configuration.
//
// Sources are applied in increasing priority: built-in defaults, a JSON file
// (path from the CONFIG variable or the -c flag), environment variables
// (optionally loaded from .env) and command line flags. The result is
// validated before it is returned.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds every setting of the daemons and the admin console.
type Config struct {
	RunAddr     string `json:"server_address" env:"SERVER_ADDRESS" validate:"hostname_port"`
	HTTPSAddr   string `json:"https_address" env:"HTTPS_ADDRESS" validate:"omitempty,hostname_port"`
	EnableHTTPS bool   `json:"enable_https" env:"ENABLE_HTTPS"`
	TLSCertFile string `json:"tls_cert_file" env:"TLS_CERT_FILE" validate:"required_if=EnableHTTPS true"`
	TLSKeyFile  string `json:"tls_key_file" env:"TLS_KEY_FILE" validate:"required_if=EnableHTTPS true"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL" validate:"loglevel"`
	LogJSON  bool   `json:"log_json" env:"LOG_JSON"`

	DataDir             string        `json:"file_storage_path" env:"FILE_STORAGE_PATH" validate:"omitempty,filepath"`
	DatabaseDSN         string        `json:"database_dsn" env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `json:"-" env:"DB_CONNECTION_TIMEOUT"`

	HashingSecret string        `json:"hashing_secret" env:"HASHING_SECRET" validate:"required"`
	TokenTTL      time.Duration `json:"-" env:"TOKEN_TTL" validate:"gt=0"`
	MaxChecks     int           `json:"max_checks" env:"MAX_CHECKS" validate:"gte=1"`
	MaxCarts      int           `json:"max_carts" env:"MAX_CARTS" validate:"gte=1"`
	MenuFile      string        `json:"menu_file" env:"MENU_FILE" validate:"omitempty,filepath"`
	PublicDir     string        `json:"public_dir" env:"PUBLIC_DIR"`

	TrustedSubnet  string  `json:"trusted_subnet" env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	RateLimitRPS   float64 `json:"rate_limit_rps" env:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst int     `json:"rate_limit_burst" env:"RATE_LIMIT_BURST" validate:"gte=0"`

	CheckSchedule    string        `json:"check_schedule" env:"CHECK_SCHEDULE" validate:"cronspec"`
	CheckConcurrency int           `json:"check_concurrency" env:"CHECK_CONCURRENCY" validate:"gte=1"`
	ReaperInterval   time.Duration `json:"-" env:"REAPER_INTERVAL" validate:"gt=0"`
	ChannelCapacity  int           `json:"channel_capacity" env:"CHANNEL_CAPACITY" validate:"gte=1"`
	ShutdownTimeout  time.Duration `json:"-" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	AdminRPCAddr string `json:"admin_rpc_address" env:"ADMIN_RPC_ADDRESS" validate:"omitempty,hostname_port"`
	AdminKey     string `json:"admin_key" env:"ADMIN_KEY" validate:"required_with=AdminRPCAddr"`

	GatewayTimeout   time.Duration `json:"-" env:"GATEWAY_TIMEOUT" validate:"gt=0"`
	StripeBaseURL    string        `json:"stripe_base_url" env:"STRIPE_BASE_URL" validate:"url"`
	StripeSecretKey  string        `json:"stripe_secret_key" env:"STRIPE_SECRET_KEY"`
	StripeSource     string        `json:"stripe_source" env:"STRIPE_SOURCE"`
	StripeCurrency   string        `json:"stripe_currency" env:"STRIPE_CURRENCY" validate:"len=3"`
	MailgunBaseURL   string        `json:"mailgun_base_url" env:"MAILGUN_BASE_URL" validate:"url"`
	MailgunDomain    string        `json:"mailgun_domain" env:"MAILGUN_DOMAIN"`
	MailgunAPIKey    string        `json:"mailgun_api_key" env:"MAILGUN_API_KEY"`
	MailgunSender    string        `json:"mailgun_sender" env:"MAILGUN_SENDER" validate:"omitempty,email"`
	TwilioBaseURL    string        `json:"twilio_base_url" env:"TWILIO_BASE_URL" validate:"url"`
	TwilioAccountSID string        `json:"twilio_account_sid" env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string        `json:"twilio_auth_token" env:"TWILIO_AUTH_TOKEN"`
	TwilioFromPhone  string        `json:"twilio_from_phone" env:"TWILIO_FROM_PHONE"`

	S3Bucket       string `json:"s3_bucket" env:"S3_BUCKET"`
	S3Region       string `json:"s3_region" env:"S3_REGION"`
	S3BaseEndpoint string `json:"s3_base_endpoint" env:"S3_BASE_ENDPOINT" validate:"omitempty,url"`
	S3AccessKey    string `json:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey    string `json:"s3_secret_key" env:"S3_SECRET_KEY"`
	S3Prefix       string `json:"s3_prefix" env:"S3_PREFIX"`
}

// jsonDurations carries the duration fields of the JSON file, which are
// written as strings such as "1h" or "30s".
type jsonDurations struct {
	DBConnectionTimeout Duration `json:"db_connection_timeout"`
	TokenTTL            Duration `json:"token_ttl"`
	ReaperInterval      Duration `json:"reaper_interval"`
	ShutdownTimeout     Duration `json:"shutdown_timeout"`
	GatewayTimeout      Duration `json:"gateway_timeout"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	HTTPSAddr:           ":3001",
	LogLevel:            "info",
	DataDir:             ".data",
	DBConnectionTimeout: 10 * time.Second,
	HashingSecret:       "thisIsASecret",
	TokenTTL:            time.Hour,
	MaxChecks:           5,
	MaxCarts:            5,
	PublicDir:           "public",
	RateLimitRPS:        20,
	RateLimitBurst:      40,
	CheckSchedule:       "@every 1m",
	CheckConcurrency:    8,
	ReaperInterval:      30 * time.Second,
	ChannelCapacity:     100,
	ShutdownTimeout:     10 * time.Second,
	GatewayTimeout:      10 * time.Second,
	StripeBaseURL:       "https://api.stripe.com",
	StripeSource:        "tok_mastercard",
	StripeCurrency:      "usd",
	MailgunBaseURL:      "https://api.mailgun.net",
	TwilioBaseURL:       "https://api.twilio.com",
	S3Region:            "us-east-1",
	S3Prefix:            "backups",
}

// InitOption tunes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips command line flags, which is what tests want.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses the given arguments instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

// New builds and validates a Config.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		args: os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Unable to load .env file: %v", err)
	}

	cfg := &Config{}
	applyDefaults(cfg, defaultConfig)

	configFile := os.Getenv("CONFIG")
	if !options.disableFlagsParsing {
		if fromArgs := configFileFromArgs(options.args); fromArgs != "" {
			configFile = fromArgs
		}
	}
	if configFile != "" {
		if err := cfg.loadJSON(configFile); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}

	if !options.disableFlagsParsing {
		if err := cfg.parseFlags(options.args); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults copies every field of defaults whose counterpart in dst is
// the zero value.
func applyDefaults(dst *Config, defaults Config) {
	target := reflect.ValueOf(dst).Elem()
	source := reflect.ValueOf(defaults)
	for i := 0; i < target.NumField(); i++ {
		if target.Field(i).IsZero() {
			target.Field(i).Set(source.Field(i))
		}
	}
}

func (c *Config) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	var durations jsonDurations
	if err := json.Unmarshal(data, &durations); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}
	for _, pair := range []struct {
		dst   *time.Duration
		value Duration
	}{
		{&c.DBConnectionTimeout, durations.DBConnectionTimeout},
		{&c.TokenTTL, durations.TokenTTL},
		{&c.ReaperInterval, durations.ReaperInterval},
		{&c.ShutdownTimeout, durations.ShutdownTimeout},
		{&c.GatewayTimeout, durations.GatewayTimeout},
	} {
		if pair.value != 0 {
			*pair.dst = time.Duration(pair.value)
		}
	}

	return nil
}

func configFileFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-c" || arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-c="):
			return strings.TrimPrefix(arg, "-c=")
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		}
	}

	return ""
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet("flatapi", flag.ContinueOnError)

	var configFile string
	flags.StringVar(&configFile, "c", "", "path to a JSON configuration file")
	flags.StringVar(&configFile, "config", "", "path to a JSON configuration file")
	flags.StringVar(&c.RunAddr, "a", c.RunAddr, "address and port of the plain HTTP listener")
	flags.StringVar(&c.HTTPSAddr, "s", c.HTTPSAddr, "address and port of the HTTPS listener")
	flags.BoolVar(&c.EnableHTTPS, "https", c.EnableHTTPS, "serve HTTPS as well")
	flags.StringVar(&c.TLSCertFile, "cert", c.TLSCertFile, "TLS certificate file")
	flags.StringVar(&c.TLSKeyFile, "key", c.TLSKeyFile, "TLS key file")
	flags.StringVar(&c.LogLevel, "l", c.LogLevel, "logger level")
	flags.StringVar(&c.DataDir, "f", c.DataDir, "directory holding the record collections")
	flags.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "PostgreSQL connection string, overrides the data directory")
	flags.StringVar(&c.HashingSecret, "secret", c.HashingSecret, "password hashing secret")
	flags.DurationVar(&c.TokenTTL, "ttl", c.TokenTTL, "token lifetime")
	flags.IntVar(&c.MaxChecks, "max-checks", c.MaxChecks, "maximum number of checks per user")
	flags.IntVar(&c.MaxCarts, "max-carts", c.MaxCarts, "maximum number of open carts per user")
	flags.StringVar(&c.MenuFile, "menu", c.MenuFile, "JSON menu file")
	flags.StringVar(&c.PublicDir, "public", c.PublicDir, "directory with static assets")
	flags.StringVar(&c.TrustedSubnet, "t", c.TrustedSubnet, "CIDR allowed to read internal endpoints")
	flags.StringVar(&c.CheckSchedule, "schedule", c.CheckSchedule, "cron schedule of the uptime checks")
	flags.StringVar(&c.AdminRPCAddr, "r", c.AdminRPCAddr, "address of the admin gRPC endpoint")
	flags.StringVar(&c.AdminKey, "k", c.AdminKey, "admin gRPC key")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("in internal/config/config.go/parseFlags(): error while `flags.Parse()` calling: %w", err)
	}

	return nil
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func validateCronSpec(fieldLevel validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fieldLevel.Field().String())

	return err == nil
}

func (c *Config) validate() error {
	validate := validator.New()

	for tag, fn := range map[string]validator.Func{
		"loglevel": validateLogLevel,
		"filepath": validateFilePath,
		"cronspec": validateCronSpec,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	return validate.Struct(c)
}
