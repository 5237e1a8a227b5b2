/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/config"
)

func newMappingCmd() *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Work with stream mappings",
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [preset]",
		Short: "Print a stream mapping as YAML",
		Long: `Print a stream mapping as YAML, ready to edit and pass to
'bagvrs convert --mapping'. Without a preset name the mapping that convert
would use is printed.

Examples:
  bagvrs mapping dump
  bagvrs mapping dump rgbd-imu > streams.yaml
  bagvrs mapping dump --imu`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			imu, _ := cmd.Flags().GetBool("imu")

			var mapping *config.Mapping
			var err error
			if len(args) == 1 {
				mapping, err = config.Preset(args[0])
			} else {
				mapping, err = resolveMapping(a.cfg, "", imu)
			}
			if err != nil {
				return err
			}

			data, err := mapping.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	dumpCmd.Flags().BoolP("imu", "i", false, "Use the RGB-D + IMU mapping")

	validateCmd := &cobra.Command{
		Use:   "validate <mapping.yaml>",
		Short: "Check a mapping file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := config.LoadMapping(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d streams, %d topics\n", mapping.Name, len(mapping.Streams), len(mapping.Topics()))
			return nil
		},
	}

	mappingCmd.AddCommand(dumpCmd, validateCmd)
	return mappingCmd
}
