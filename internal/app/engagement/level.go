package engagement

// XPPerLevel is the flat XP span of every level.
const XPPerLevel = 100

const (
	// XPForMoodLog is the base reward for one applied mood log.
	XPForMoodLog = 10
	// XPForSongPlay is the base reward for one applied song play.
	XPForSongPlay = 5
)

// Rules are the tunable reward constants. The zero value is not usable;
// start from DefaultRules.
type Rules struct {
	XPForMoodLog  int64
	XPForSongPlay int64
	XPPerLevel    int64
}

// DefaultRules returns the stock reward table.
func DefaultRules() Rules {
	return Rules{
		XPForMoodLog:  XPForMoodLog,
		XPForSongPlay: XPForSongPlay,
		XPPerLevel:    XPPerLevel,
	}
}

func (r Rules) perLevel() int64 {
	if r.XPPerLevel <= 0 {
		return XPPerLevel
	}
	return r.XPPerLevel
}

// Level maps XP to a level under these rules.
func (r Rules) Level(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/r.perLevel()) + 1
}

// LevelForXP returns floor(xp / XPPerLevel) + 1. Negative XP is treated as 0.
func LevelForXP(xp int64) int {
	return DefaultRules().Level(xp)
}

// XPForLevel returns the cumulative XP required to reach a given level.
func (r Rules) XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(level-1) * r.perLevel()
}

// XPToNextLevel returns XP remaining until the next level.
func (r Rules) XPToNextLevel(xp int64) int64 {
	next := r.XPForLevel(r.Level(xp) + 1)
	return max(0, next-max(0, xp))
}

// ProgressPct returns progress toward the next level (0 to 100).
func (r Rules) ProgressPct(xp int64) float64 {
	if xp < 0 {
		xp = 0
	}
	into := xp % r.perLevel()
	return float64(into) / float64(r.perLevel()) * 100.0
}
