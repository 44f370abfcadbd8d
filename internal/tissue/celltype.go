package tissue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CellType is the pigment-cell type tag. It is immutable for the life of a cell.
type CellType int

const (
	Base CellType = iota
	TypeA
	TypeB
	TypeC
	TypeD
)

// AllCellTypes lists every cell type in declaration order.
var AllCellTypes = []CellType{Base, TypeA, TypeB, TypeC, TypeD}

// Organizer is the type the other pigment types orient themselves against.
const Organizer = TypeA

var cellTypeNames = map[CellType]string{
	Base:  "base",
	TypeA: "a",
	TypeB: "b",
	TypeC: "c",
	TypeD: "d",
}

var cellTypeAliases = map[string]CellType{
	"base":         Base,
	"a":            TypeA,
	"b":            TypeB,
	"c":            TypeC,
	"d":            TypeD,
	"iridophore":   TypeA,
	"xanthophore":  TypeB,
	"melanophore":  TypeC,
	"erythrophore": TypeD,
}

// String returns the short name of the type.
func (t CellType) String() string {
	if name, ok := cellTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("celltype(%d)", int(t))
}

// Valid reports whether t is one of the declared types.
func (t CellType) Valid() bool {
	_, ok := cellTypeNames[t]
	return ok
}

// ParseCellType parses a type name (case-insensitive). Biological names
// such as "iridophore" are accepted as aliases.
func ParseCellType(s string) (CellType, error) {
	t, ok := cellTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Base, fmt.Errorf("unknown cell type: %q", s)
	}
	return t, nil
}

func (t CellType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid cell type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *CellType) UnmarshalText(text []byte) error {
	parsed, err := ParseCellType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the type as its short name.
func (t CellType) MarshalJSON() ([]byte, error) {
	text, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (t *CellType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cell type must be a string: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}
