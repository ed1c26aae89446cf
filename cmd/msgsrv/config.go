package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/msgsrv/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
	configShowPath  string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Example: `  # Create the default configuration file
  msgsrv config init

  # Write to a custom location, replacing any existing file
  msgsrv config init --path ./msgsrv.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configShowPath)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "File to write (default: OS config dir)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVar(&configShowPath, "config", "", "Path to configuration file (default: OS config dir)")

	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
