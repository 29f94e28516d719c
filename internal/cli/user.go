package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibeloop/vibeloop/internal/domain"
)

func init() {
	xpCmd.Flags().IntVar(&xpLimit, "limit", 20, "Entries to show")
	rootCmd.AddCommand(initCmd, ledgerCmd, seenCmd, xpCmd)
}

var xpLimit int

var initCmd = &cobra.Command{
	Use:   "init USER",
	Short: "Create a user's ledger if it does not exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		_, created, err := d.Service.InitializeUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledger for %s\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger for %s already exists\n", args[0])
		}
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger USER",
	Short: "Show a user's XP, level, streak and badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		sum, err := d.Service.GetSummary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		l := sum.Ledger
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:         %s\n", l.UserID)
		fmt.Fprintf(out, "Level:        %d (%.0f%%, %d XP to next)\n", l.Level, sum.ProgressPct, sum.XPToNextLevel)
		fmt.Fprintf(out, "XP:           %d\n", l.XP)
		fmt.Fprintf(out, "Mood streak:  %d (longest %d, x%.1f)\n", l.MoodStreak, l.LongestMoodStreak, l.CurrentStreakMultiplier)
		fmt.Fprintf(out, "Moods:        %d distinct\n", len(l.Activity.Moods))
		fmt.Fprintf(out, "Genres:       %d distinct\n", len(l.Activity.Genres))
		fmt.Fprintf(out, "Badges:       %d (%d unseen)\n", sum.BadgeCount, sum.UnseenBadges)

		if sum.BadgeCount == 0 {
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nBADGE\tTYPE\tEARNED\tSEEN")
		for _, t := range domain.BadgeTypes() {
			for _, b := range *l.Badges(t) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", b.BadgeID, t, b.EarnedAt.Format("2006-01-02 15:04"), b.Seen)
			}
		}
		return w.Flush()
	},
}

var seenCmd = &cobra.Command{
	Use:   "seen USER [BADGE...]",
	Short: "Mark badges as seen (all when none are named)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.Service.MarkBadgesSeen(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d badge(s) seen\n", n)
		return nil
	},
}

var xpCmd = &cobra.Command{
	Use:   "xp USER",
	Short: "Show a user's recent XP grants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Service.XPHistory(cmd.Context(), args[0], xpLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No XP recorded for %s.\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSOURCE\tAMOUNT\tBALANCE\tREFERENCE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t+%d\t%d\t%s\n", e.At.Format("2006-01-02 15:04"), e.Source, e.Amount, e.Balance, e.Reference)
		}
		return w.Flush()
	},
}
