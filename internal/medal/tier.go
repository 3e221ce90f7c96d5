package medal

import (
	"fmt"
	"strings"
)

// Tier is a gamification level awarded from a trader's win rate.
// Tiers are ordered, so they can be compared with < and >.
type Tier int

const (
	None Tier = iota
	Bronze
	Silver
	Gold
	Platinum
	Diamond
)

var tierNames = [...]string{
	None:     "none",
	Bronze:   "bronze",
	Silver:   "silver",
	Gold:     "gold",
	Platinum: "platinum",
	Diamond:  "diamond",
}

// String returns the lower-case name of the tier.
// Values outside the enumeration print as "none".
func (t Tier) String() string {
	if t < None || t > Diamond {
		return tierNames[None]
	}
	return tierNames[t]
}

// ParseTier converts a tier name (case-insensitive) back into a Tier.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return None, fmt.Errorf("unknown medal tier %q", s)
}

// MarshalText implements encoding.TextMarshaler, so tiers serialize as names in JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
