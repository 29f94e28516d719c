package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibeloop/vibeloop/internal/domain"
)

func init() {
	badgesCmd.Flags().StringVar(&badgeType, "type", "", "Filter by type (mood_explorer, genre_collector, seasonal_achievement)")
	seasonsCmd.Flags().BoolVar(&seasonsActive, "active", false, "Only seasons active now")
	rootCmd.AddCommand(badgesCmd, seasonsCmd)
}

var (
	badgeType     string
	seasonsActive bool
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List the badge catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		defs, err := d.Service.ListBadges(cmd.Context(), domain.BadgeType(badgeType))
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No badges defined.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tRARITY\tXP")
		for _, b := range defs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", b.ID, b.Name, b.Type, b.Rarity, b.XPReward)
		}
		return w.Flush()
	},
}

var seasonsCmd = &cobra.Command{
	Use:   "seasons",
	Short: "List seasonal events",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		seasons, err := d.Service.ListSeasons(cmd.Context(), seasonsActive)
		if err != nil {
			return err
		}
		if len(seasons) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No seasons.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tACTIVE\tBADGES")
		for _, s := range seasons {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%d\n", s.SeasonID, s.Name,
				s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"), s.Active, len(s.RelatedBadges))
		}
		return w.Flush()
	},
}
