package model

import (
	"fmt"
	"strings"
)

// PoolType selects the math and encoding strategy for a pool.
type PoolType int

const (
	PoolTypeUnknown PoolType = iota
	PoolTypeWeighted
	PoolTypeStable
	PoolTypeMetaStable
	PoolTypeLinear
	PoolTypePhantomStable
)

var poolTypeNames = map[PoolType]string{
	PoolTypeUnknown:       "Unknown",
	PoolTypeWeighted:      "Weighted",
	PoolTypeStable:        "Stable",
	PoolTypeMetaStable:    "MetaStable",
	PoolTypeLinear:        "Linear",
	PoolTypePhantomStable: "PhantomStable",
}

func (t PoolType) String() string {
	if name, ok := poolTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PoolType(%d)", int(t))
}

// IsStableFamily reports whether the pool uses the stable invariant.
func (t PoolType) IsStableFamily() bool {
	return t == PoolTypeStable || t == PoolTypeMetaStable || t == PoolTypePhantomStable
}

// HasStableExitKinds reports whether exitPool accepts the stable-pool exit
// kinds for this pool type. Phantom pools hold their own BPT in the vault and
// use a different exit encoding.
func (t PoolType) HasStableExitKinds() bool {
	return t == PoolTypeStable || t == PoolTypeMetaStable
}

// RequiresPriceRates reports whether every token must carry a price rate.
func (t PoolType) RequiresPriceRates() bool {
	return t == PoolTypeMetaStable || t == PoolTypePhantomStable
}

// ParsePoolType parses a pool type name, case-insensitively.
func ParsePoolType(input string) (PoolType, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	for t, name := range poolTypeNames {
		if t != PoolTypeUnknown && strings.ToLower(name) == needle {
			return t, nil
		}
	}
	return PoolTypeUnknown, fmt.Errorf("unknown pool type: %s", input)
}

func (t PoolType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *PoolType) UnmarshalText(text []byte) error {
	parsed, err := ParsePoolType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
