/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/bagvrs/pkg/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bagvrs configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration to the --config path, or to
` + config.GetDefaultConfigPath() + `.

Examples:
  bagvrs config init
  bagvrs config init --imu --force
  bagvrs --config ./bagvrs.yaml config init`,
		Args: cobra.NoArgs,
		// The file may not exist yet, so it is not loaded.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			imu, _ := cmd.Flags().GetBool("imu")
			force, _ := cmd.Flags().GetBool("force")

			path := configPath(cmd)
			if config.ConfigExists(path) && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if _, err := config.BootstrapConfig(path, imu); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolP("imu", "i", false, "Write the RGB-D + IMU mapping into the file")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(appFrom(cmd).cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	return config.GetDefaultConfigPath()
}
