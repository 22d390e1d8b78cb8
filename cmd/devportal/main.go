package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pders01/devportal/internal/config"
	"github.com/pders01/devportal/internal/debuglog"
	"github.com/pders01/devportal/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	contentDir string
	dbPath     string
	logLevel   string
	quiet      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "devportal",
	Short: "Browse and search the developer portal from the terminal",
	Long: `devportal searches the developer portal's pages as you type and shows
the solution and community pages together with their question and
microblog feeds.

Example usage:
  devportal                       # Open the search view
  devportal solution xm           # Open the solution page of xm
  devportal search proxy          # Print the preview results for "proxy"
  devportal index --watch         # Keep the search index in sync with the content`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = debuglog.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, startOptions{})
	},
}

// skipConfig marks commands that run without a loaded configuration.
const skipConfig = "skip-config"

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (default is "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&contentDir, "content", "", "content directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to database file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or off (overrides config)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip startup banner")

	rootCmd.AddCommand(solutionsCmd, solutionCmd, communityCmd)
	rootCmd.AddCommand(searchCmd, indexCmd, feedsCmd)
	rootCmd.AddCommand(versionCmd, configCmd)
}

// initConfig loads the configuration, applies flag overrides and sets up
// the file logger.
func initConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyOverrides(cfg); err != nil {
		return err
	}

	level := debuglog.ParseLogLevel(cfg.Log.Level)
	if err := debuglog.Setup(level, cfg.Log.File); err != nil {
		// The log file is optional; the app works without it.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	debuglog.WithFields(map[string]any{
		"content": cfg.Content.Dir,
		"backend": cfg.Search.Backend,
		"cache":   cfg.Cache.Backend,
	}).Debugf("configuration loaded")
	return nil
}

func applyOverrides(c *config.Config) error {
	if contentDir != "" {
		dir, err := validation.ExpandPath(contentDir)
		if err != nil {
			return fmt.Errorf("content directory: %w", err)
		}
		c.Content.Dir = dir
	}
	if dbPath != "" {
		c.Database.Path = dbPath
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
