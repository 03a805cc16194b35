package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/config"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
)

var (
	version = "dev"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "autoreply",
	Short: "Automatic replies for webinar chats",
	Long: `autoreply answers webinar chat messages using keyword rules, falling back
to a default message or a text-completion model.

It can receive messages pushed to a webhook (serve) or watch a chat page in a
headless browser (poll).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd, pollCmd, tryCmd)
}

// loadConfig reads .env, the config file and the environment, then sets up logging.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
