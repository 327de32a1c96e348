package cli

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/specialistvlad/flowcanvas/internal/app"
	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/hcl_adapter"
	"github.com/spf13/cobra"
)

func serveCmd(outW io.Writer) *cobra.Command {
	var (
		configPaths []string
		overrides   config.Overrides
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a graph to browsers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateLogFlags(overrides.LogLevel, overrides.LogFormat); err != nil {
				return err
			}
			overrides.LogLevel = strings.ToLower(overrides.LogLevel)
			overrides.LogFormat = strings.ToLower(overrides.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.NewApp(ctx, outW, &app.Config{ConfigPaths: configPaths, Overrides: overrides}, hcl_adapter.NewLoader())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringSliceVarP(&configPaths, "config", "c", []string{"flowcanvas.hcl"}, "HCL config files or directories; missing ones are skipped")
	cmd.Flags().StringVarP(&overrides.GraphID, "graph", "g", "", "Graph to edit (overrides server.graph)")
	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", "", "Logging level: 'debug', 'info', 'warn' or 'error'")
	cmd.Flags().StringVar(&overrides.LogFormat, "log-format", "", "Log output format: 'text' or 'json'")
	return cmd
}
