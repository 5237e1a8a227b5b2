/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/api"
	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/metrics"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve <file.vrs>",
		Short: "Browse a container over a read-only REST API",
		Long: `Serve the streams, configurations and records of a container over a
read-only REST API, with Prometheus metrics at /metrics.

With --catalog the recorded conversions are served too. With --api-key
every /api/v1 request must carry the key in the X-API-Key header.

Examples:
  bagvrs serve recording.vrs
  bagvrs serve recording.vrs --port 9000 --bind 0.0.0.0 --api-key secret
  bagvrs serve recording.vrs --catalog ~/.local/share/bagvrs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			cfg := api.ServerConfig{
				Port:   a.cfg.Server.Port,
				Bind:   a.cfg.Server.Bind,
				APIKey: a.cfg.Server.APIKey,
			}
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			cfg.Bind = stringFlag(cmd, "bind", cfg.Bind)
			cfg.APIKey = stringFlag(cmd, "api-key", cfg.APIKey)
			catalogDir := stringFlag(cmd, "catalog", a.cfg.CatalogDir)

			r, err := container.Open(args[0], container.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer r.Close()

			var cat api.ConversionCatalog
			if catalogDir != "" {
				c, err := getContainer().OpenCatalog(catalogDir)
				if err != nil {
					return err
				}
				defer c.Close()
				cat = c
			}

			starter := getContainer().GetServerFactory().CreateServerStarter()
			return starter.StartServer(cmd.Context(), r, cat, cfg, metrics.New(), a.log)
		},
	}

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind")
	serveCmd.Flags().String("api-key", "", "Require this key in the X-API-Key header")
	serveCmd.Flags().String("catalog", "", "Serve the conversions recorded in this catalog directory")
	return serveCmd
}
