package gradebook

import "github.com/kotky/gradebook-edx-platform-extensions/internal/platform/envutil"

// Config carries the platform feature flags the gradebook reads. Components
// receive it explicitly; nothing consults global settings at call time.
type Config struct {
	// Enabled wires the gradebook receivers at all (STUDENT_GRADEBOOK).
	Enabled bool `yaml:"student_gradebook"`
	// SignalOnScoreChanged lets the courseware publish ScoreChanged events.
	SignalOnScoreChanged bool `yaml:"signal_on_score_changed"`
	// AllowStudentStateUpdatesOnClosedCourse keeps learner grade events
	// flowing after the course end date.
	AllowStudentStateUpdatesOnClosedCourse bool `yaml:"allow_student_state_updates_on_closed_course"`
	// NotificationsEnabled turns on the leaderboard hooks.
	NotificationsEnabled bool `yaml:"enable_notifications"`
	LeaderboardSize      int  `yaml:"leaderboard_size"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		SignalOnScoreChanged: true,
		LeaderboardSize:      3,
	}
}

func (c *Config) ApplyEnv() {
	c.Enabled = envutil.Bool("STUDENT_GRADEBOOK", c.Enabled)
	c.SignalOnScoreChanged = envutil.Bool("SIGNAL_ON_SCORE_CHANGED", c.SignalOnScoreChanged)
	c.AllowStudentStateUpdatesOnClosedCourse = envutil.Bool("ALLOW_STUDENT_STATE_UPDATES_ON_CLOSED_COURSE", c.AllowStudentStateUpdatesOnClosedCourse)
	c.NotificationsEnabled = envutil.Bool("ENABLE_NOTIFICATIONS", c.NotificationsEnabled)
	c.LeaderboardSize = envutil.Int("LEADERBOARD_SIZE", c.LeaderboardSize)
	if c.LeaderboardSize < 0 {
		c.LeaderboardSize = 0
	}
}
