package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// BodyVariant selects the base body mesh; marker positions are recorded in
// that variant's normalized coordinate space.
type BodyVariant string

const (
	VariantMale   BodyVariant = "male"
	VariantFemale BodyVariant = "female"
)

// Variants lists every supported body variant.
var Variants = []BodyVariant{VariantMale, VariantFemale}

func (v BodyVariant) Valid() bool {
	return v == VariantMale || v == VariantFemale
}

// ParseVariant validates s as a body variant.
func ParseVariant(s string) (BodyVariant, error) {
	v := BodyVariant(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown body variant %q", s)
	}
	return v, nil
}

// Category classifies a marker.
type Category string

const (
	CategoryMole      Category = "mole"
	CategoryFreckle   Category = "freckle"
	CategoryBirthmark Category = "birthmark"
	CategoryLesion    Category = "lesion"
	CategoryOther     Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMole, CategoryFreckle, CategoryBirthmark, CategoryLesion, CategoryOther:
		return true
	}
	return false
}

// Marker is a user-placed annotation on the body surface.
type Marker struct {
	ID        int64
	Variant   BodyVariant
	Position  r3.Vec
	Category  Category
	Label     string
	CreatedAt time.Time
}

// markerJSON is the wire shape used by backups; positions travel as [x,y,z].
type markerJSON struct {
	ID        int64       `json:"id"`
	Variant   BodyVariant `json:"gender"`
	Position  [3]float64  `json:"position"`
	Category  Category    `json:"category"`
	Label     string      `json:"label"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (m Marker) MarshalJSON() ([]byte, error) {
	return json.Marshal(markerJSON{
		ID:        m.ID,
		Variant:   m.Variant,
		Position:  [3]float64{m.Position.X, m.Position.Y, m.Position.Z},
		Category:  m.Category,
		Label:     m.Label,
		CreatedAt: m.CreatedAt,
	})
}

func (m *Marker) UnmarshalJSON(b []byte) error {
	var raw markerJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Marker{
		ID:        raw.ID,
		Variant:   raw.Variant,
		Position:  r3.Vec{X: raw.Position[0], Y: raw.Position[1], Z: raw.Position[2]},
		Category:  raw.Category,
		Label:     raw.Label,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// Entry is one dated observation of a marker.
type Entry struct {
	ID       int64     `json:"id"`
	MarkerID int64     `json:"moleId"`
	Date     time.Time `json:"date"`
	Notes    string    `json:"notes,omitempty"`
	SizeMM   float64   `json:"sizeMm,omitempty"`
}
