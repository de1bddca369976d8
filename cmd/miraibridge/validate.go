package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keepmind9/miraibridge/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfig string
	validateShow   bool
	validateJSON   bool
)

// errInvalidConfig makes the command exit non-zero after the report is printed
var errInvalidConfig = errors.New("configuration is invalid")

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Config     string   `json:"config"`
	Mode       string   `json:"mode,omitempty"`
	Accounts   int      `json:"accounts"`
	Superusers int      `json:"superusers"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate miraibridge configuration file",
	Long: `Validate the miraibridge configuration file without connecting.

This command checks:
  - YAML syntax and environment variables
  - Required mirai settings
  - Account list and durations

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := validateConfig
		if configFile == "" {
			configFile = findConfig()
		}
		if configFile == "" {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "❌ No configuration file found")
			fmt.Fprintln(w, "\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range defaultConfigLocations() {
				fmt.Fprintf(w, "  - %s\n", loc)
			}
			return errInvalidConfig
		}

		cfg, result := validateFile(configFile)
		if validateShow && cfg != nil && !validateJSON {
			showConfig(cmd.OutOrStdout(), cfg)
		}
		outputValidationResult(cmd.OutOrStdout(), result, validateJSON)
		if !result.Valid {
			return errInvalidConfig
		}
		return nil
	},
}

func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/miraibridge/config.yaml"),
		"/etc/miraibridge/config.yaml",
	}
}

func findConfig() string {
	for _, loc := range defaultConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// validateFile loads path and collects errors and warnings
func validateFile(path string) (*core.Config, ValidationResult) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, ValidationResult{
			Valid:  false,
			Config: path,
			Errors: []string{err.Error()},
		}
	}
	return cfg, ValidationResult{
		Valid:      true,
		Config:     path,
		Mode:       cfg.Mode(),
		Accounts:   len(cfg.Mirai.QQ),
		Superusers: len(cfg.Superusers),
		Warnings:   validateConfigDetails(cfg),
	}
}

func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if cfg.Mirai.Reverse {
		if cfg.Mirai.AccessToken == "" {
			warnings = append(warnings, "Reverse websocket accepts connections without an access_token")
		}
		if len(cfg.Mirai.QQ) > 0 {
			warnings = append(warnings, "mirai.qq is ignored in reverse mode; accounts are checked against mirai's bot list")
		}
	} else if cfg.Mirai.AccessToken != "" {
		warnings = append(warnings, "mirai.access_token only applies in reverse mode")
	}

	if strings.HasPrefix(strings.TrimSpace(cfg.Mirai.APITimeout), "-") {
		warnings = append(warnings, "API calls never time out (negative api_timeout)")
	}
	if len(cfg.Superusers) == 0 {
		warnings = append(warnings, "No superusers configured")
	}
	return warnings
}

func showConfig(w io.Writer, cfg *core.Config) {
	fmt.Fprintf(w, "Mode: %s\n", cfg.Mode())
	if cfg.Mirai.Reverse {
		fmt.Fprintf(w, "Listening for mirai on %s\n", cfg.ListenAddr())
	} else {
		fmt.Fprintf(w, "mirai-api-http: %s:%d\n", cfg.Mirai.Host, cfg.Mirai.Port)
	}
	fmt.Fprintf(w, "\nAccounts (%d):\n", len(cfg.Mirai.QQ))
	for _, qq := range cfg.Mirai.QQ {
		fmt.Fprintf(w, "  - %d\n", qq)
	}
	if len(cfg.Nickname) > 0 {
		fmt.Fprintf(w, "\nNicknames: %s\n", strings.Join(cfg.Nickname, ", "))
	}
	fmt.Fprintln(w)
}

func outputValidationResult(w io.Writer, result ValidationResult, jsonOutput bool) {
	if jsonOutput {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Mode: %s\n", result.Mode)
		fmt.Fprintf(w, "  - Accounts: %d\n", result.Accounts)
		fmt.Fprintf(w, "  - Superusers: %d\n", result.Superusers)
	} else {
		fmt.Fprintln(w, "❌ Configuration validation failed:")
		if len(result.Errors) > 0 {
			fmt.Fprintln(w, "\nErrors:")
			for _, errMsg := range result.Errors {
				fmt.Fprintf(w, "  - %s\n", errMsg)
			}
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\n⚠️  Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
