package cmd

import (
	"context"
	"fmt"

	"github.com/JSH-Team/mediabatch/cmd/items"
	"github.com/JSH-Team/mediabatch/cmd/process"
	"github.com/JSH-Team/mediabatch/cmd/settings"
	"github.com/JSH-Team/mediabatch/cmd/undo"
	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	projectFlag  string
	logLevelFlag string

	rootCmd = &cobra.Command{
		Use:   "mediabatch",
		Short: "Batch audio analysis for project items",
		Long: `mediabatch runs slicing and decomposition analyses over the selected
items of a project, a few at a time, and records each batch as one undoable step.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mediabatch %s\n", version)
			fmt.Printf("Build time: %s\n", buildTime)
			fmt.Printf("Git commit: %s\n", gitCommit)
		},
	}
)

// SetVersion sets the version information
func SetVersion(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
	rootCmd.Version = v
}

// Execute runs the root command. Cancelling ctx cancels a running batch.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.Error("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project file (defaults to the configured project)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(process.ProcessCmd)
	rootCmd.AddCommand(items.ItemsCmd)
	rootCmd.AddCommand(undo.UndoCmd)
	rootCmd.AddCommand(settings.ConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the config file, then lets flags override it.
func initConfig() error {
	if err := config.LoadConfig(); err != nil {
		return err
	}
	if projectFlag != "" {
		config.ProjectPath = projectFlag
	}
	if logLevelFlag != "" {
		config.LogLevel = logLevelFlag
	}
	logger.SetLevel(config.LogLevel)
	return nil
}
