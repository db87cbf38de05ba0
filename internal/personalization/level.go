package personalization

import (
	"fmt"
	"strings"
)

// Level is an ordered tier: each level includes everything below it.
type Level int

const (
	LevelNone Level = iota
	LevelLight
	LevelModerate
	LevelFull
)

var levelNames = [...]string{
	LevelNone:     "NONE",
	LevelLight:    "LIGHT",
	LevelModerate: "MODERATE",
	LevelFull:     "FULL",
}

func (l Level) String() string {
	if l < LevelNone || l > LevelFull {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func ParseLevel(raw string) (Level, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	for i, name := range levelNames {
		if name == normalized {
			return Level(i), true
		}
	}
	return LevelLight, false
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown personalization level %q", string(text))
	}
	*l = parsed
	return nil
}
