package domain

import (
	"fmt"
	"strings"
)

// Tier identifies a transport mode on the board. Higher tiers cost more.
type Tier int

const (
	TierTaxi        Tier = 1
	TierBus         Tier = 2
	TierUnderground Tier = 3
)

// Fares are part of the observable game balance and must not be tuned per session.
const (
	FareTaxi        = 44
	FareBus         = 55
	FareUnderground = 110

	// MinimumFare is the cheapest ticket; a balance below it strands the player.
	MinimumFare = FareTaxi
)

// Tiers lists every transport tier, cheapest first.
var Tiers = []Tier{TierTaxi, TierBus, TierUnderground}

// Fare returns the ticket price for the tier, or 0 for an unknown tier.
func (t Tier) Fare() int {
	switch t {
	case TierTaxi:
		return FareTaxi
	case TierBus:
		return FareBus
	case TierUnderground:
		return FareUnderground
	default:
		return 0
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t >= TierTaxi && t <= TierUnderground
}

func (t Tier) String() string {
	switch t {
	case TierTaxi:
		return "taxi"
	case TierBus:
		return "bus"
	case TierUnderground:
		return "underground"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier accepts the tier name, its "tierN" alias or the bare number.
func ParseTier(value string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "taxi", "tier1", "tier-1", "1":
		return TierTaxi, nil
	case "bus", "tier2", "tier-2", "2":
		return TierBus, nil
	case "underground", "metro", "tier3", "tier-3", "3":
		return TierUnderground, nil
	default:
		return 0, fmt.Errorf("unknown transport tier %q", value)
	}
}

// MarshalText encodes the tier by name; the zero tier encodes as "".
func (t Tier) MarshalText() ([]byte, error) {
	if t == 0 {
		return []byte{}, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("invalid transport tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseTier does; "" leaves the tier unset.
func (t *Tier) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*t = 0
		return nil
	}
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
