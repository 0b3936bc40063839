package settings

import (
	"fmt"

	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective configuration",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after file, environment and flag overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(config.Effective())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to the config file",
	Long: `Write the configuration after environment and flag overrides back to the
config file, so that for example 'mediabatch -p session.mbp config save' makes
session.mbp the default project.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveConfig(config.Effective()); err != nil {
			return err
		}
		logger.Info("Saved configuration, default project is %s", config.ProjectPath)
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(showCmd)
	ConfigCmd.AddCommand(saveCmd)
}
