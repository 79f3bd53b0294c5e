package dhat

import (
	"fmt"
	"slices"
	"strings"
)

// Unit selects which quantity a metric measures.
type Unit int

const (
	UnitBytes Unit = iota
	// Allocation counts.
	UnitBlocks
	// Accumulated block lifetimes, useful to find short-lived allocations.
	UnitLifetimes
)

var unitNames = [...]string{
	UnitBytes:     "bytes",
	UnitBlocks:    "blocks",
	UnitLifetimes: "lifetimes",
}

func (u Unit) String() string {
	if u < 0 || int(u) >= len(unitNames) {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return unitNames[u]
}

func Units() []string {
	return slices.Clone(unitNames[:])
}

func ParseUnit(name string) (Unit, error) {
	for i, known := range unitNames {
		if known == name {
			return Unit(i), nil
		}
	}
	return UnitBytes, fmt.Errorf("unknown unit %q, expected one of [%s]", name, strings.Join(Units(), ", "))
}
