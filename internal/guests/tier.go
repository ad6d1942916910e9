package guests

import "strings"

// Tier is a guest permission level for a single event. Tiers form a total
// order: manager > moderator > viewer.
type Tier string

const (
	TierNone      Tier = ""
	TierViewer    Tier = "viewer"
	TierModerator Tier = "moderator"
	TierManager   Tier = "manager"
)

var tierRanks = map[Tier]int{
	TierViewer:    1,
	TierModerator: 2,
	TierManager:   3,
}

// ParseTier normalises a stored permission level string; unknown values map
// to TierNone so a corrupted row can never satisfy a check.
func ParseTier(value string) Tier {
	tier := Tier(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := tierRanks[tier]; !ok {
		return TierNone
	}
	return tier
}

// Valid reports whether the tier is one of the three grantable levels.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// AtLeast reports whether the held tier satisfies the required tier.
func (t Tier) AtLeast(required Tier) bool {
	held, ok := tierRanks[t]
	if !ok {
		return false
	}
	want, ok := tierRanks[required]
	if !ok {
		return false
	}
	return held >= want
}

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}
