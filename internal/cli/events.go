package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibeloop/vibeloop/internal/app/gamification"
	"github.com/vibeloop/vibeloop/internal/domain"
)

func init() {
	moodCmd.Flags().StringVar(&eventID, "id", "", "Event ID (generated when empty)")
	moodCmd.Flags().StringVar(&eventAt, "at", "", "Event time, RFC 3339 (default now)")
	moodCmd.Flags().StringVar(&moodSource, "source", "cli", "Where the mood was logged")

	playCmd.Flags().StringVar(&eventID, "id", "", "Event ID (generated when empty)")
	playCmd.Flags().StringVar(&eventAt, "at", "", "Event time, RFC 3339 (default now)")
	playCmd.Flags().StringVar(&playMood, "mood", "", "Mood the song was played for")
	playCmd.Flags().IntVar(&playDuration, "duration", 0, "Seconds played")

	rootCmd.AddCommand(moodCmd, playCmd)
}

var (
	eventID      string
	eventAt      string
	moodSource   string
	playMood     string
	playDuration int
)

var moodCmd = &cobra.Command{
	Use:   "mood USER MOOD",
	Short: "Record a mood log",
	Args:  cobra.ExactArgs(2),
	RunE:  runMood,
}

var playCmd = &cobra.Command{
	Use:   "play USER SONG GENRE",
	Short: "Record a song play",
	Args:  cobra.ExactArgs(3),
	RunE:  runPlay,
}

func eventTime() (time.Time, error) {
	if eventAt == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, eventAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return t, nil
}

func runMood(cmd *cobra.Command, args []string) error {
	at, err := eventTime()
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Service.RecordMoodEvent(cmd.Context(), domain.MoodLog{
		ID:        eventID,
		UserID:    args[0],
		Mood:      args[1],
		Source:    moodSource,
		Timestamp: at,
	})
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	at, err := eventTime()
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Service.RecordSongPlayEvent(cmd.Context(), domain.SongPlayLog{
		ID:             eventID,
		UserID:         args[0],
		SongID:         args[1],
		Genre:          args[2],
		Mood:           playMood,
		DurationPlayed: playDuration,
		Timestamp:      at,
	})
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func printOutcome(w io.Writer, out gamification.Outcome) {
	if out.Duplicate {
		fmt.Fprintf(w, "Event %s already applied; ledger unchanged\n", out.EventID)
		return
	}
	fmt.Fprintf(w, "Event %s: +%d XP (total %d, level %d)\n",
		out.EventID, out.XPGained, out.Ledger.XP, out.Ledger.Level)
	if out.LeveledUp {
		fmt.Fprintf(w, "  Level up! %d -> %d\n", out.PreviousLevel, out.Ledger.Level)
	}
	for _, a := range out.Awarded {
		fmt.Fprintf(w, "  Badge unlocked: %s (+%d XP)\n", a.Badge.Name, a.Badge.XPReward)
	}
	if out.Ledger.MoodStreak > 0 {
		fmt.Fprintf(w, "  Mood streak: %d day(s), x%.1f\n", out.Ledger.MoodStreak, out.Ledger.CurrentStreakMultiplier)
	}
}
