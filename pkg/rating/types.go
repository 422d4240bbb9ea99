package rating

import (
	"fmt"
	"strings"
)

// Stat order used everywhere a five-element vector appears:
// speed, stamina, power, guts, wisdom.
const NumStats = 5

// StatNames lists the five attributes in vector order.
var StatNames = [NumStats]string{"speed", "stamina", "power", "guts", "wisdom"}

// StatPair holds the current and trained-maximum value of one attribute.
// Current above Max is accepted as-is; values are not range checked.
type StatPair struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// StatBlock is a full set of five stat pairs as read off the stat screen.
// The zero value is the manual-entry fallback when extraction fails.
type StatBlock struct {
	Speed   StatPair `json:"speed"`
	Stamina StatPair `json:"stamina"`
	Power   StatPair `json:"power"`
	Guts    StatPair `json:"guts"`
	Wisdom  StatPair `json:"wisdom"`
}

// Currents returns the five current values in vector order.
func (b StatBlock) Currents() [NumStats]int {
	return [NumStats]int{b.Speed.Current, b.Stamina.Current, b.Power.Current, b.Guts.Current, b.Wisdom.Current}
}

// Maxes returns the five max values in vector order.
func (b StatBlock) Maxes() [NumStats]int {
	return [NumStats]int{b.Speed.Max, b.Stamina.Max, b.Power.Max, b.Guts.Max, b.Wisdom.Max}
}

// FromValues builds a StatBlock from ten values ordered pairwise:
// speed cur, speed max, stamina cur, stamina max, power cur, power max,
// guts cur, guts max, wisdom cur, wisdom max.
func FromValues(v [2 * NumStats]int) StatBlock {
	return StatBlock{
		Speed:   StatPair{Current: v[0], Max: v[1]},
		Stamina: StatPair{Current: v[2], Max: v[3]},
		Power:   StatPair{Current: v[4], Max: v[5]},
		Guts:    StatPair{Current: v[6], Max: v[7]},
		Wisdom:  StatPair{Current: v[8], Max: v[9]},
	}
}

// Distance is the race distance category a rating is computed for.
type Distance string

const (
	Short  Distance = "short"
	Mile   Distance = "mile"
	Middle Distance = "middle"
	Long   Distance = "long"
)

// Strategy is the running style category a rating is computed for.
type Strategy string

const (
	FrontRunner Strategy = "front-runner"
	PaceChaser  Strategy = "pace-chaser"
	LateSurger  Strategy = "late-surger"
	Closer      Strategy = "closer"
)

// ParseDistance maps user input to a Distance. Case, surrounding space and
// underscore/space separators are tolerated.
func ParseDistance(s string) (Distance, error) {
	switch Distance(canon(s)) {
	case Short:
		return Short, nil
	case Mile:
		return Mile, nil
	case Middle:
		return Middle, nil
	case Long:
		return Long, nil
	}
	return "", fmt.Errorf("unknown distance %q", s)
}

// ParseStrategy maps user input to a Strategy with the same tolerance
// as ParseDistance.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(canon(s)) {
	case FrontRunner:
		return FrontRunner, nil
	case PaceChaser:
		return PaceChaser, nil
	case LateSurger:
		return LateSurger, nil
	case Closer:
		return Closer, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Distances lists all distance categories in course order.
func Distances() []Distance {
	return []Distance{Short, Mile, Middle, Long}
}

// Strategies lists all strategy categories from front to back of the pack.
func Strategies() []Strategy {
	return []Strategy{FrontRunner, PaceChaser, LateSurger, Closer}
}

func canon(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
