package costing

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Unit is a canonical recipe or pack unit.
type Unit string

const (
	Gram       Unit = "g"
	Kilogram   Unit = "kg"
	Milliliter Unit = "ml"
	Liter      Unit = "lt"
	Piece      Unit = "pcs"
)

// Family groups units that convert into each other.
type Family string

const (
	FamilyWeight  Family = "weight"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
	FamilyUnknown Family = "unknown"
)

var unitAliases = map[string]Unit{
	"g":          Gram,
	"gr":         Gram,
	"gram":       Gram,
	"grams":      Gram,
	"kg":         Kilogram,
	"kilogram":   Kilogram,
	"kilograms":  Kilogram,
	"ml":         Milliliter,
	"milliliter": Milliliter,
	"millilitre": Milliliter,
	"lt":         Liter,
	"l":          Liter,
	"liter":      Liter,
	"litre":      Liter,
	"pcs":        Piece,
	"pc":         Piece,
	"piece":      Piece,
	"pieces":     Piece,
}

// ParseUnit maps a unit string or alias to its canonical unit.
func ParseUnit(s string) (Unit, bool) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	return u, ok
}

// Family returns the unit family.
func (u Unit) Family() Family {
	switch u {
	case Gram, Kilogram:
		return FamilyWeight
	case Milliliter, Liter:
		return FamilyVolume
	case Piece:
		return FamilyCount
	default:
		return FamilyUnknown
	}
}

// IsBase reports whether prices may be quoted per this unit.
func (u Unit) IsBase() bool {
	return u == Kilogram || u == Liter || u == Piece
}

// ToBase converts qty from one unit to a base unit of the same family.
func ToBase(qty float64, from, base Unit) (float64, error) {
	switch {
	case from == base:
		return qty, nil
	case from == Gram && base == Kilogram, from == Milliliter && base == Liter:
		return qty / 1000, nil
	default:
		return 0, eris.Errorf("costing: unsupported conversion %s -> %s", from, base)
	}
}
