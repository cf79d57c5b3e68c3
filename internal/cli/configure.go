package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"careassist/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with defaults.
Edit the file afterwards to set the AI provider API key and the
translation and speech endpoints.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("Configuration written with default values.")
	fmt.Println("Set ai.api_key (or the OPENAI_API_KEY / ANTHROPIC_API_KEY environment variable), then run: careassist serve")

	return nil
}
