package domain

import (
	"slices"
	"strings"
)

// Collection identifies one independently ordered set of items.
type Collection string

const (
	CollectionMedia      Collection = "media"
	CollectionExperience Collection = "experience"
	CollectionPeople     Collection = "people"
	CollectionStudios    Collection = "studios"
)

// CollectionMode selects which engine owns a collection's ordering.
type CollectionMode string

const (
	ModeReorder CollectionMode = "reorder"
	ModeBoard   CollectionMode = "board"
)

// Media kinds.
const (
	KindVideo = "video"
	KindPhoto = "photo"
)

// Experience kinds.
const (
	KindExperience = "experience"
	KindTraining   = "training"
	KindSkills     = "skills"
)

// CollectionSpec describes how one collection is ordered and partitioned.
type CollectionSpec struct {
	ID    Collection     `json:"id"`
	Label string         `json:"label"`
	Mode  CollectionMode `json:"mode"`
	Kinds []string       `json:"kinds,omitempty"`
	// KindScoped marks collections whose display order is independent per kind.
	KindScoped bool `json:"kind_scoped,omitempty"`
}

var collectionSpecs = []CollectionSpec{
	{ID: CollectionMedia, Label: "Media", Mode: ModeReorder, Kinds: []string{KindVideo, KindPhoto}},
	{ID: CollectionExperience, Label: "Experience", Mode: ModeReorder, Kinds: []string{KindExperience, KindTraining, KindSkills}, KindScoped: true},
	{ID: CollectionPeople, Label: "People", Mode: ModeBoard},
	{ID: CollectionStudios, Label: "Studios", Mode: ModeBoard},
}

// Collections returns every built-in collection in display order.
func Collections() []CollectionSpec {
	out := make([]CollectionSpec, 0, len(collectionSpecs))
	for _, spec := range collectionSpecs {
		spec.Kinds = slices.Clone(spec.Kinds)
		out = append(out, spec)
	}
	return out
}

// ParseCollection resolves a raw collection id.
func ParseCollection(raw string) (Collection, error) {
	id := Collection(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := lookupSpec(id); !ok {
		return "", ErrInvalidCollection
	}
	return id, nil
}

// Spec returns the collection's spec. Unknown collections return a zero spec.
func (c Collection) Spec() CollectionSpec {
	spec, _ := lookupSpec(c)
	return spec
}

// IsBoard reports whether items of c carry a pipeline status.
func (c Collection) IsBoard() bool {
	return c.Spec().Mode == ModeBoard
}

// HasKind reports whether kind is a valid discriminator for c.
func (c Collection) HasKind(kind string) bool {
	return slices.Contains(c.Spec().Kinds, kind)
}

func (c Collection) String() string {
	return string(c)
}

func lookupSpec(id Collection) (CollectionSpec, bool) {
	for _, spec := range collectionSpecs {
		if spec.ID == id {
			return spec, true
		}
	}
	return CollectionSpec{}, false
}
