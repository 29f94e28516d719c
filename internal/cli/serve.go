package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveSweepNow, "sweep-now", false, "Run the seasonal sweep once at startup")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost     string
	servePort     int
	serveSweepNow bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the VibeLoop API server",
	Long:  `Start the HTTP API and the scheduled seasonal sweep.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}
	ctx := context.Background()
	if serveSweepNow {
		if _, err := d.Service.RunSeasonalSweep(ctx); err != nil {
			d.Close()
			return err
		}
	}

	return d.Serve(ctx)
}
