package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the seasonal badge sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		rep, err := d.Service.RunSeasonalSweep(cmd.Context())
		out := cmd.OutOrStdout()
		if len(rep.ActiveSeasons) == 0 && err == nil {
			fmt.Fprintln(out, "No active seasons.")
			return nil
		}
		fmt.Fprintf(out, "Seasons:  %s\n", strings.Join(rep.ActiveSeasons, ", "))
		fmt.Fprintf(out, "Users:    %d visited, %d awarded, %d failed\n", rep.UsersVisited, rep.UsersAwarded, rep.Failures)
		fmt.Fprintf(out, "Awarded:  %d badge(s), %d XP\n", rep.BadgesAwarded, rep.XPAwarded)
		fmt.Fprintf(out, "Duration: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
		return err
	},
}
