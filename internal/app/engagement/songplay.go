package engagement

import (
	"strings"

	"github.com/vibeloop/vibeloop/internal/domain"
)

// ProcessSongPlay applies one song play to a ledger. Plays without a genre
// are rejected with a ValidationError.
func ProcessSongPlay(rules Rules, current domain.Ledger, ev domain.SongPlayLog, defs []domain.BadgeDefinition) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}

	l := current.Clone()
	l.Normalize()
	res := Result{PreviousLevel: current.Level}
	at := ev.Timestamp.UTC()

	grant(&l, &res, domain.XPSongPlay, rules.XPForSongPlay, ev.ID, at)

	genre := strings.TrimSpace(ev.Genre)
	l.Activity.Genres.Add(genre)
	songs, ok := l.Activity.GenreSongs[genre]
	if !ok {
		songs = domain.StringSet{}
		l.Activity.GenreSongs[genre] = songs
	}
	songs.Add(strings.TrimSpace(ev.SongID))
	touchActivity(&l, at)

	awardMatching(&l, &res, defs, domain.BadgeGenreCollector, at)

	l.Level = rules.Level(l.XP)
	res.Ledger = l
	return res, nil
}
