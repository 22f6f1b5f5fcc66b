// Package config loads the bot configuration. Values are resolved in the
// order defaults, JSON file, environment (including a .env file), command
// line flags; each source overrides the previous one.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the verification and game bots.
type Config struct {
	BotToken            string        `env:"TOKEN" json:"-"`
	GuildID             string        `env:"GUILD_ID" json:"guild_id"`
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LinkBaseURL         string        `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"omitempty,storagepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	SMTPHost            string        `env:"SMTP_HOST" json:"smtp_host"`
	SMTPPort            string        `env:"SMTP_PORT" json:"smtp_port" validate:"omitempty,numeric"`
	SMTPFrom            string        `env:"SMTP_FROM" json:"smtp_from" validate:"omitempty,email"`
	SMTPUsername        string        `env:"SMTP_USERNAME" json:"smtp_username"`
	SMTPPassword        string        `env:"SMTP_PASSWORD" json:"-"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" json:"grpc_address" validate:"omitempty,hostname_port"`
	VerifyRateLimit     float64       `env:"VERIFY_RATE_LIMIT" json:"verify_rate_limit" validate:"gte=0"`
	VerifyRateBurst     int           `env:"VERIFY_RATE_BURST" json:"verify_rate_burst" validate:"gte=0"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" json:"shutdown_timeout"`
	ConfigFile          string        `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	LinkBaseURL:         "http://localhost:3000",
	LogLevel:            "info",
	DBFileName:          "database.json",
	DBConnectionTimeout: 10 * time.Second,
	SMTPPort:            "25",
	SMTPFrom:            "noreply@example.com",
	VerifyRateLimit:     1,
	VerifyRateBurst:     5,
	ShutdownTimeout:     10 * time.Second,
}

func validateStoragePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	info, err := os.Stat(path)
	if err != nil {
		return os.IsNotExist(err)
	}

	return !info.IsDir()
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("storagepath", validateStoragePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses args instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func (c *Config) applyJSONFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", fileName, err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", fileName, err)
	}

	return nil
}

// applyEnv overrides only the values present in the environment.
func (c *Config) applyEnv() error {
	var valuesFromEnv Config
	err := env.Parse(&valuesFromEnv)
	if err != nil {
		return err
	}

	if valuesFromEnv.BotToken != "" {
		c.BotToken = valuesFromEnv.BotToken
	}
	if valuesFromEnv.GuildID != "" {
		c.GuildID = valuesFromEnv.GuildID
	}
	if valuesFromEnv.RunAddr != "" {
		c.RunAddr = valuesFromEnv.RunAddr
	}
	if valuesFromEnv.LinkBaseURL != "" {
		c.LinkBaseURL = valuesFromEnv.LinkBaseURL
	}
	if valuesFromEnv.LogLevel != "" {
		c.LogLevel = valuesFromEnv.LogLevel
	}
	if valuesFromEnv.DBFileName != "" {
		c.DBFileName = valuesFromEnv.DBFileName
	}
	if valuesFromEnv.DatabaseDSN != "" {
		c.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}
	if valuesFromEnv.DBConnectionTimeout != 0 {
		c.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}
	if valuesFromEnv.SMTPHost != "" {
		c.SMTPHost = valuesFromEnv.SMTPHost
	}
	if valuesFromEnv.SMTPPort != "" {
		c.SMTPPort = valuesFromEnv.SMTPPort
	}
	if valuesFromEnv.SMTPFrom != "" {
		c.SMTPFrom = valuesFromEnv.SMTPFrom
	}
	if valuesFromEnv.SMTPUsername != "" {
		c.SMTPUsername = valuesFromEnv.SMTPUsername
	}
	if valuesFromEnv.SMTPPassword != "" {
		c.SMTPPassword = valuesFromEnv.SMTPPassword
	}
	if valuesFromEnv.TrustedSubnet != "" {
		c.TrustedSubnet = valuesFromEnv.TrustedSubnet
	}
	if valuesFromEnv.GRPCAddr != "" {
		c.GRPCAddr = valuesFromEnv.GRPCAddr
	}
	if valuesFromEnv.VerifyRateLimit != 0 {
		c.VerifyRateLimit = valuesFromEnv.VerifyRateLimit
	}
	if valuesFromEnv.VerifyRateBurst != 0 {
		c.VerifyRateBurst = valuesFromEnv.VerifyRateBurst
	}
	if valuesFromEnv.ShutdownTimeout != 0 {
		c.ShutdownTimeout = valuesFromEnv.ShutdownTimeout
	}

	return nil
}

func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flags.StringVar(&c.RunAddr, "a", c.RunAddr, "address and port of the link server")
	flags.StringVar(&c.LinkBaseURL, "b", c.LinkBaseURL, "base address of the emailed verification links")
	flags.StringVar(&c.LogLevel, "l", c.LogLevel, "logger level")
	flags.StringVar(&c.DBFileName, "f", c.DBFileName, "JSON file name with the verification database")
	flags.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "PostgreSQL connection string, overrides -f")
	flags.StringVar(&c.GuildID, "g", c.GuildID, "guild to register slash commands in, empty for global")
	flags.StringVar(&c.TrustedSubnet, "t", c.TrustedSubnet, "CIDR allowed to read /internal/stats")
	flags.StringVar(&c.GRPCAddr, "grpc", c.GRPCAddr, "address of the gRPC health server, empty to disable")
	flags.String("c", "", "JSON configuration file")

	return flags.Parse(args)
}

// configFileFromArgs finds -c/--c/-c=... without parsing the other flags,
// since the file has to be applied before them.
func configFileFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-c" || arg == "--c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(arg) > 3 && arg[:3] == "-c=":
			return arg[3:]
		case len(arg) > 4 && arg[:4] == "--c=":
			return arg[4:]
		}
	}

	return ""
}

// New builds the configuration from every source and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}
	if options.args == nil && len(os.Args) > 1 {
		options.args = os.Args[1:]
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFile := os.Getenv("CONFIG")
	if !options.disableFlagsParsing {
		if fromArgs := configFileFromArgs(options.args); fromArgs != "" {
			configFile = fromArgs
		}
	}
	if configFile != "" {
		if err := values.applyJSONFile(configFile); err != nil {
			return nil, err
		}
		values.ConfigFile = configFile
	}

	if err := values.applyEnv(); err != nil {
		return nil, err
	}

	if !options.disableFlagsParsing {
		if err := values.applyFlags(options.args); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
