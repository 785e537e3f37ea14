package engine

import "fmt"

// Category groups the three kinds of backend.
type Category string

// Backend categories. Cloud is the managed backend, custom a bring-your-own-key vendor
// and local a self-hosted platform.
const (
	CategoryCloud  Category = "cloud"
	CategoryCustom Category = "custom"
	CategoryLocal  Category = "local"
)

// ParseCategory accepts cloud, custom or local.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryCloud, CategoryCustom, CategoryLocal:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// Selection is the single preferred backend. The zero value selects nothing.
// Because there is exactly one Selection, cloud, every custom candidate and every
// local platform are mutually exclusive by construction.
type Selection struct {
	Category Category
	// ID is the vendor id for custom and the platform id for local; empty for cloud.
	ID string
}

// CloudSelection selects the managed cloud backend.
func CloudSelection() Selection { return Selection{Category: CategoryCloud} }

// CustomSelection selects the custom vendor id.
func CustomSelection(id string) Selection { return Selection{Category: CategoryCustom, ID: id} }

// LocalSelection selects the local platform.
func LocalSelection(platform string) Selection {
	return Selection{Category: CategoryLocal, ID: platform}
}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool {
	return s.Category == ""
}

func (s Selection) String() string {
	switch s.Category {
	case "":
		return "none"
	case CategoryCloud:
		return "cloud"
	default:
		return string(s.Category) + ":" + s.ID
	}
}

// PendingDefault records the intent to promote a candidate once it is configured.
type PendingDefault struct {
	Category Category
	ID       string
}

func (p *PendingDefault) matches(category Category, id string) bool {
	return p != nil && p.Category == category && p.ID == id
}
