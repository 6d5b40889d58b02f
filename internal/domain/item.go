package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Item is the generic projection every collection entry shares.
type Item struct {
	ID           string     `json:"id"`
	Collection   Collection `json:"collection"`
	Kind         string     `json:"kind,omitempty"`
	Title        string     `json:"title"`
	Status       string     `json:"status,omitempty"`
	DisplayOrder int        `json:"display_order"`
	Visible      bool       `json:"visible"`
	Details      Details    `json:"details"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Details holds the collection-specific optional fields.
type Details struct {
	StoragePath string `json:"storage_path,omitempty"`

	Studio   string `json:"studio,omitempty"`
	Director string `json:"director,omitempty"`
	Role     string `json:"role,omitempty"`
	Year     string `json:"year,omitempty"`

	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Rating   int    `json:"rating,omitempty"`

	Website  string `json:"website,omitempty"`
	Facebook string `json:"facebook,omitempty"`
	Location string `json:"location,omitempty"`

	Notes string `json:"notes,omitempty"`
}

type ItemInput struct {
	ID           string
	Collection   Collection
	Kind         string
	Title        string
	Status       string
	DisplayOrder int
	Visible      bool
	Details      Details
}

// ItemUpdate carries the editable fields. Nil pointers leave the field untouched.
type ItemUpdate struct {
	Kind    *string
	Title   *string
	Visible *bool
	Details *Details
}

// NewItem validates in against its collection and pipeline.
func NewItem(in ItemInput, pipeline Pipeline, now time.Time) (Item, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Title = strings.TrimSpace(in.Title)
	in.Status = normalizeCategoryID(in.Status)

	if in.ID == "" {
		return Item{}, ErrInvalidID
	}
	if _, ok := lookupSpec(in.Collection); !ok {
		return Item{}, ErrInvalidCollection
	}
	if in.Title == "" {
		return Item{}, ErrInvalidTitle
	}
	if in.DisplayOrder < 0 {
		return Item{}, ErrInvalidOrder
	}
	if err := validateKind(in.Collection, in.Kind); err != nil {
		return Item{}, err
	}
	if in.Collection.IsBoard() {
		if in.Status == "" {
			in.Status = pipeline.First()
		}
		if !pipeline.Contains(in.Status) {
			return Item{}, ErrInvalidStatus
		}
	} else if in.Status != "" {
		return Item{}, ErrInvalidStatus
	}
	details, err := normalizeDetails(in.Details)
	if err != nil {
		return Item{}, err
	}

	return Item{
		ID:           in.ID,
		Collection:   in.Collection,
		Kind:         in.Kind,
		Title:        in.Title,
		Status:       in.Status,
		DisplayOrder: in.DisplayOrder,
		Visible:      in.Visible,
		Details:      details,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// Apply applies one partial edit.
func (i *Item) Apply(in ItemUpdate, now time.Time) error {
	next := *i
	if in.Kind != nil {
		kind := strings.ToLower(strings.TrimSpace(*in.Kind))
		if err := validateKind(i.Collection, kind); err != nil {
			return err
		}
		next.Kind = kind
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		next.Title = title
	}
	if in.Visible != nil {
		next.Visible = *in.Visible
	}
	if in.Details != nil {
		details, err := normalizeDetails(*in.Details)
		if err != nil {
			return err
		}
		next.Details = details
	}
	next.UpdatedAt = now.UTC()
	*i = next
	return nil
}

// SetStatus moves the item to another pipeline category. DisplayOrder is kept.
func (i *Item) SetStatus(status string, pipeline Pipeline, now time.Time) error {
	if !i.Collection.IsBoard() {
		return ErrInvalidStatus
	}
	status = normalizeCategoryID(status)
	if !pipeline.Contains(status) {
		return ErrInvalidStatus
	}
	i.Status = status
	i.UpdatedAt = now.UTC()
	return nil
}

// OrderScope returns the key items must share to be ordered against each other.
func (i Item) OrderScope() string {
	if i.Collection.Spec().KindScoped {
		return string(i.Collection) + "/" + i.Kind
	}
	return string(i.Collection)
}

// SortItems orders items by display order, newest first on ties, then by id.
func SortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func validateKind(collection Collection, kind string) error {
	kinds := collection.Spec().Kinds
	if len(kinds) == 0 {
		if kind != "" {
			return ErrInvalidKind
		}
		return nil
	}
	if !slices.Contains(kinds, kind) {
		return ErrInvalidKind
	}
	return nil
}

func normalizeDetails(d Details) (Details, error) {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }
	for _, field := range []*string{
		&d.StoragePath, &d.Studio, &d.Director, &d.Role, &d.Year,
		&d.Company, &d.Position, &d.Email, &d.Phone,
		&d.Website, &d.Facebook, &d.Location, &d.Notes,
	} {
		trim(field)
	}
	if d.Rating < 0 || d.Rating > 5 {
		return Details{}, ErrInvalidRating
	}
	return d, nil
}
