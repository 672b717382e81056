/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	fetchCmd "github.com/mpapenbr/fieldapp-client/pkg/cmd/fetch"
	loginCmd "github.com/mpapenbr/fieldapp-client/pkg/cmd/login"
	logoutCmd "github.com/mpapenbr/fieldapp-client/pkg/cmd/logout"
	statusCmd "github.com/mpapenbr/fieldapp-client/pkg/cmd/status"
	"github.com/mpapenbr/fieldapp-client/pkg/config"
	"github.com/mpapenbr/fieldapp-client/pkg/gateway"
	"github.com/mpapenbr/fieldapp-client/pkg/tokenstore"
	"github.com/mpapenbr/fieldapp-client/version"
)

const envPrefix = "FAC"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "fac",
	Short:   "Command line client for the field application backend",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.fac.yml)")

	rootCmd.PersistentFlags().StringVar(&config.BaseURL, "base-url",
		"http://localhost:8000",
		"Base URL of the backend")
	rootCmd.PersistentFlags().StringVar(&config.APIPrefix, "api-prefix",
		gateway.DefaultAPIPrefix,
		"Path prefix of the REST api (use / to disable)")
	rootCmd.PersistentFlags().StringVar(&config.RequestTimeout, "request-timeout",
		"30s",
		"Timeout for a single backend request")
	rootCmd.PersistentFlags().StringVar(&config.WaitForBackend, "wait-for-backend",
		"",
		"Duration to wait for the backend to be reachable (empty: don't wait)")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat, "log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter, "log-filter",
		"",
		"zapfilter rules, e.g. \"*:session.* debug+:gateway\"")
	rootCmd.PersistentFlags().StringVarP(&config.Output, "output", "o",
		"json",
		"output format of command results (json, yaml)")
	rootCmd.PersistentFlags().StringVar(&config.TokenStore, "token-store",
		"file",
		"where the token is kept between runs (memory, file, nats)")
	rootCmd.PersistentFlags().StringVar(&config.TokenFile, "token-file",
		"",
		"path of the token file (default below the user config dir)")
	rootCmd.PersistentFlags().StringVar(&config.TokenSlot, "token-slot",
		tokenstore.DefaultSlot,
		"name of the slot the token is stored in")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL, "nats-url",
		"nats://localhost:4222",
		"URL of the NATS server (token-store nats)")
	rootCmd.PersistentFlags().StringVar(&config.NatsBucket, "nats-bucket",
		"",
		"key value bucket for tokens (token-store nats)")
	rootCmd.PersistentFlags().BoolVar(&config.EnableTelemetry, "enable-telemetry",
		false,
		"enables telemetry")
	rootCmd.PersistentFlags().StringVar(&config.TelemetryEndpoint, "telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout prints to stderr)")
	rootCmd.PersistentFlags().StringVar(&config.TLSCAFile, "tls-ca",
		"",
		"CA file used to verify the backend certificate")
	rootCmd.PersistentFlags().StringVar(&config.TLSCertFile, "tls-cert",
		"",
		"client certificate presented to the backend (reloaded on change)")
	rootCmd.PersistentFlags().StringVar(&config.TLSKeyFile, "tls-key",
		"",
		"key of the client certificate")

	// add commands here
	rootCmd.AddCommand(loginCmd.NewLoginCmd())
	rootCmd.AddCommand(logoutCmd.NewLogoutCmd())
	rootCmd.AddCommand(statusCmd.NewStatusCmd())
	rootCmd.AddCommand(fetchCmd.NewFetchCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".fac" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fac")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --base-url to FAC_BASE_URL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
