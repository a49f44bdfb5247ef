// Package commands implements the CLI commands for platewise.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/platewise/platewise/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "platewise",
	Short: "LLM-powered recipe extraction from web pages",
	Long: `Platewise turns web pages into structured recipe records using LLMs.

Point it at URLs and get validated, structured recipes in JSON, JSONL,
or YAML. Pages that contain no recipe are reported as such rather than
guessed at.

Examples:
  # Extract recipes from a single page
  platewise extract -u "https://example.com/best-banana-bread"

  # Use OpenAI instead of the default Anthropic
  platewise extract -u "https://example.com/recipe" -p openai -m gpt-4o

  # Render JavaScript-heavy pages in a headless browser
  platewise extract -u "https://example.com/recipe" --fetch-mode dynamic`,
	Version: version.String(),
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.platewise.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".platewise")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("PLATEWISE")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
