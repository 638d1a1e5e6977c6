package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/annofrag/internal/logging"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "v0.3.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "annofrag",
	Short: "annofrag - render overlapping annotations as properly nested markup",
	Long: `annofrag turns a text with overlapping labeled ranges into a properly
nested stream of enter, exit and text events.

Ranges that cross each other are split into fragments. Ranges marked
should_not_split are kept whole and push the others to split instead.
Zero-length ranges become anchors that never cut the text around them.

The events can be rendered as markup, as an HTML tree, or as JSON records.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		cmd.SetContext(logging.NewContext(cmd.Context(), logger))
		return nil
	},
}

// Execute runs the root command; cancelling ctx stops long-running
// commands such as serve and batch
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of annofrag.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "annofrag %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.annofrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "diagnostic log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	registerDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.annofrag")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv reads environment variables that match ANNOFRAG_*, e.g.
// ANNOFRAG_RENDER_FORMAT for render.format
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ANNOFRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// registerDefaults makes every config key known to v, so environment
// variables can override keys that no file or flag mentions
func registerDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]interface{}); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
}

// loadConfig merges defaults, file, env and the flags of cmd. bindings maps
// flag names to config keys; only flags the user set take effect, so
// commands sharing a key never step on each other.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*model.Config, error) {
	v := viper.GetViper()
	var bindErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := bindings[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}
	return model.LoadConfig(v)
}
