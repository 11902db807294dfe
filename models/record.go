package models

// Note stages. A record's Notes uses either the three staged keys or
// NoteUnclassified, never both.
const (
	NoteTop          = "top"
	NoteMiddle       = "middle"
	NoteBase         = "base"
	NoteUnclassified = "unclassified"
)

// Gender markers recognised on product pages.
const (
	SexMen    = "for men"
	SexWomen  = "for women"
	SexUnisex = "for women and men"
)

// FragranceRecord is the structured data extracted from one product page.
type FragranceRecord struct {
	// Title is the page heading: perfume name followed by house name.
	Title string `json:"title"`

	// Sex is one of SexMen, SexWomen, SexUnisex, or empty.
	Sex string `json:"sex"`

	// Image is the absolute URL of the primary product image.
	Image string `json:"image"`

	// Accords are lowercase scent categories in page order.
	Accords []string `json:"accords"`

	// Notes maps a stage key to its notes in page order.
	Notes map[string][]NoteItem `json:"notes"`

	House       string `json:"house"`
	PerfumeName string `json:"perfume_name"`
}

// NoteItem is a single scent note with its thumbnail.
type NoteItem struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// NewFragranceRecord returns a record with every collection initialised,
// so an empty record still serialises accords as [] and notes as {}.
func NewFragranceRecord() *FragranceRecord {
	return &FragranceRecord{
		Accords: []string{},
		Notes:   map[string][]NoteItem{},
	}
}
