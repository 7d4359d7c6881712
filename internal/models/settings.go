// internal/models/settings.go
package models

import (
	"fmt"
	"time"
)

// MaxCandidateCount bounds how many movies a room asks the catalog for.
const MaxCandidateCount = 50

// Settings captures how a room plays: how many movies to vote on, how long
// each vote stays open, and a few behaviour flags.
type Settings struct {
	GameMode         string `json:"gameMode"`         // "quick" or "full"
	CandidateCount   int    `json:"candidateCount"`   // number of movies the host should load
	VotingTimeoutSec int    `json:"votingTimeoutSec"` // seconds a vote stays open; 0 => no limit
	AnonymousVotes   bool   `json:"anonymousVotes"`   // hide who voted what in room snapshots
	AllowLateJoin    bool   `json:"allowLateJoin"`    // allow joining once the game has started
}

// GameModes holds the preset settings for each supported game mode.
var GameModes = map[string]Settings{
	"quick": {
		GameMode:         "quick",
		CandidateCount:   10,
		VotingTimeoutSec: 20,
		AllowLateJoin:    true,
	},
	"full": {
		GameMode:         "full",
		CandidateCount:   20,
		VotingTimeoutSec: 30,
		AllowLateJoin:    true,
	},
}

// DefaultSettings returns the quick game preset.
func DefaultSettings() Settings {
	return GameModes["quick"]
}

// VotingTimeout returns the configured vote window or 0 if there is no limit.
func (s Settings) VotingTimeout() time.Duration {
	return time.Duration(s.VotingTimeoutSec) * time.Second
}

// Update applies the provided settings on top of the current ones.
// Keys that are absent keep their old value. A "gameMode" key resets the
// other fields to that mode's preset before the remaining keys are applied.
func (s *Settings) Update(newSettings map[string]interface{}) error {
	if val, exists := newSettings["gameMode"]; exists && val != nil {
		mode, ok := val.(string)
		if !ok {
			return fmt.Errorf("invalid type for gameMode")
		}
		preset, ok := GameModes[mode]
		if !ok {
			return fmt.Errorf("unknown game mode %q", mode)
		}
		*s = preset
	}

	assignBool := func(field *bool, key string) error {
		if val, exists := newSettings[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newSettings[key]
		if !exists || val == nil {
			return nil
		}
		// JSON numbers decode as float64
		var n int
		switch v := val.(type) {
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&s.CandidateCount, "candidateCount", 1, MaxCandidateCount); err != nil {
		return err
	}
	if err := assignInt(&s.VotingTimeoutSec, "votingTimeoutSec", 0, 3600); err != nil {
		return err
	}
	if err := assignBool(&s.AnonymousVotes, "anonymousVotes"); err != nil {
		return err
	}
	if err := assignBool(&s.AllowLateJoin, "allowLateJoin"); err != nil {
		return err
	}
	return nil
}

// ParseSettings converts a loose settings map into Settings, starting from current.
func ParseSettings(settings map[string]interface{}, current Settings) (Settings, error) {
	parsed := current
	err := parsed.Update(settings)
	return parsed, err
}
