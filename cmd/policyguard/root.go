package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"policyguard/gateway/pkg/cli"
	"policyguard/gateway/pkg/config"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "policyguard",
	Short: "PolicyGuard - policy arbitration gateway for LLM traffic",
	Long: `PolicyGuard evaluates every prompt and completion that crosses it against
runtime-editable policies and forwards, redacts or blocks the traffic.

It provides:
  - PII, financial-harm, entropy-drift and tool-call detection
  - Most Restrictive Wins arbitration with fail-closed behaviour
  - OpenAI and Gemini compatible proxy endpoints
  - A policy management API and an audit trail of every verdict`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command and exits with the command's status.
func Execute() {
	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return cli.ExitOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return cli.ExitFailure
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before the configuration")
}

// loadEnvFile exports the variables of the dotenv file so POLICYGUARD_*
// overrides and provider keys can live next to the config. Variables already
// set in the environment win. A missing default file is not an error.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if envFile == defaultEnvFile && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return cli.NewConfigError("env-file", err.Error())
	}
	return nil
}

// loadConfig loads the configuration file with environment overrides. When
// the default config file does not exist the built-in defaults are used.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == defaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	config.SetConfig(cfg)
	return cfg, nil
}
