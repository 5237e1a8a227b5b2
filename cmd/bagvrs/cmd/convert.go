/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/catalog"
	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/convert"
	"github.com/ssargent/bagvrs/pkg/metrics"
)

func newConvertCmd() *cobra.Command {
	compression := container.CompressionFlag(container.DefaultCompression)

	convertCmd := &cobra.Command{
		Use:   "convert <input.bag> <output.vrs>",
		Short: "Convert a ROS bag into a stream container",
		Long: `Convert a RealSense ROS bag into a stream container.

Streams are declared from the RGB-D mapping, the RGB-D + IMU mapping with
--imu, or a mapping file. Configurations are extracted from the info
topics, then image and IMU messages are written in timestamp order.

Examples:
  bagvrs convert recording.bag recording.vrs
  bagvrs convert recording.bag recording.vrs --imu -c zstd --verify
  bagvrs convert recording.bag out.vrs --mapping streams.yaml --relative`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			input, output := args[0], args[1]

			imu, _ := cmd.Flags().GetBool("imu")
			mappingFile, _ := cmd.Flags().GetString("mapping")
			mapping, err := resolveMapping(a.cfg, mappingFile, imu)
			if err != nil {
				return err
			}

			comp := compression.Value()
			if !cmd.Flags().Changed("compression") {
				if comp, err = container.ParseCompression(a.cfg.Compression); err != nil {
					return err
				}
			}
			relative := boolFlag(cmd, "relative", a.cfg.Relative)
			verify := boolFlag(cmd, "verify", a.cfg.Verify)
			metricsFile := stringFlag(cmd, "metrics-file", a.cfg.MetricsFile)
			catalogDir := stringFlag(cmd, "catalog", a.cfg.CatalogDir)

			m := metrics.New()
			conv, err := convert.New(convert.Options{
				Mapping:     mapping,
				Compression: comp,
				Relative:    relative,
				Verify:      verify,
				Logger:      a.log,
				Metrics:     m,
			})
			if err != nil {
				return err
			}

			a.log.Infof("Converting %s to %s", input, output)
			res, convErr := conv.Convert(cmd.Context(), input, output)

			if catalogDir != "" {
				if err := recordConversion(catalogDir, input, output, mapping.Name, res, convErr); err != nil {
					a.log.Warnf("Could not record conversion in catalog %s: %v", catalogDir, err)
				}
			}
			if metricsFile != "" {
				if err := m.WriteTextfile(metricsFile); err != nil {
					a.log.Warnf("Could not write metrics to %s: %v", metricsFile, err)
				}
			}
			if convErr != nil {
				return convErr
			}
			return outputResult(cmd.OutOrStdout(), a.format, res, mapping)
		},
	}

	convertCmd.Flags().BoolP("imu", "i", false, "Use the RGB-D + IMU mapping")
	convertCmd.Flags().VarP(&compression, "compression", "c", "Body compression ("+container.CompressionFlagValues()+")")
	convertCmd.Flags().String("mapping", "", "Stream mapping file (YAML)")
	convertCmd.Flags().Bool("relative", false, "Timestamps relative to the first message")
	convertCmd.Flags().Bool("verify", false, "Re-read and check the container after writing")
	convertCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file")
	convertCmd.Flags().String("catalog", "", "Record the conversion in this catalog directory")
	return convertCmd
}

// resolveMapping picks the stream mapping: a mapping file, then --imu,
// then the mapping of the config file, then the RGB-D preset.
func resolveMapping(cfg *config.Config, file string, imu bool) (*config.Mapping, error) {
	switch {
	case file != "":
		return config.LoadMapping(file)
	case imu:
		return config.RGBDIMUMapping(), nil
	case cfg.Mapping != nil:
		return cfg.Mapping, nil
	}
	return config.RGBDMapping(), nil
}

func recordConversion(dir, input, output, mapping string, res *convert.Result, convErr error) error {
	cat, err := getContainer().OpenCatalog(dir)
	if err != nil {
		return err
	}
	defer cat.Close()
	_, err = cat.Add(catalog.NewEntry(input, output, mapping, res, convErr))
	return err
}

// boolFlag returns the flag when it was given, def otherwise.
func boolFlag(cmd *cobra.Command, name string, def bool) bool {
	if !cmd.Flags().Changed(name) {
		return def
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func stringFlag(cmd *cobra.Command, name, def string) string {
	if !cmd.Flags().Changed(name) {
		return def
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}
