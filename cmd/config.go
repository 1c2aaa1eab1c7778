package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/paperboy/internal/logger"
	"github.com/josephgoksu/paperboy/types"
)

const (
	configName = ".paperboy"
	envPrefix  = "PAPERBOY"
)

// validate is a single validator instance, it caches struct info
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// validateAppConfig performs validation on the AppConfig struct.
func validateAppConfig(config *types.AppConfig) error {
	if errs := validate.Struct(config); errs != nil {
		return errs
	}
	return nil
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// Load .env file first if present. It's okay if it doesn't exist.
	_ = godotenv.Load()

	// Environment variable handling must be set up BEFORE reading the
	// config file so env vars can influence config loading.
	viper.SetEnvPrefix(envPrefix) // e.g., PAPERBOY_VERBOSE
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g., PAPERBOY_PRINTER_ADDRESS

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(".")        // ./.paperboy.yaml
		viper.AddConfigPath(home)       // $HOME/.paperboy.yaml
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
			} else if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logJson", false)

	viper.SetDefault("data.file", "paperboy.db")

	viper.SetDefault("mailbox.credentialsFile", "credentials.json")
	viper.SetDefault("mailbox.tokenFile", "token.json")
	viper.SetDefault("mailbox.query", "in:inbox -in:draft")
	viper.SetDefault("mailbox.fetchLimit", 25)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.modelName", "gpt-4o-mini")
	viper.SetDefault("llm.maxOutputTokens", 1024)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.requestTimeoutSeconds", 60)
	viper.SetDefault("llm.maxRetries", 2)

	viper.SetDefault("tracker.enabled", true)
	viper.SetDefault("tracker.taskListId", "@default")

	viper.SetDefault("printer.mode", "file")
	viper.SetDefault("printer.outputFile", "printed_tasks.txt")
	viper.SetDefault("printer.width", 32)
	viper.SetDefault("printer.timeoutSeconds", 10)

	viper.SetDefault("pipeline.intervalSeconds", 60)
	viper.SetDefault("pipeline.batchSize", 10)
	viper.SetDefault("pipeline.dueGraceHours", 24)

	viper.SetDefault("webhook.addr", ":8787")
}

// GetConfig unmarshals the current viper state into a validated
// AppConfig and configures logging from it. Commands call this once
// at the top of their Run.
func GetConfig() *types.AppConfig {
	cfg := types.AppConfig{}
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error: unable to decode config:", err)
		os.Exit(1)
	}

	// OPENAI_API_KEY is the conventional variable; accept it when the
	// prefixed form is absent.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if verbose {
		cfg.Verbose = true
		cfg.LLM.Debug = true
	}

	if err := validateAppConfig(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid configuration:", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	logger.Setup(level, cfg.LogJSON)

	return &cfg
}
