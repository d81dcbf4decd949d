package models

import (
	"time"
)

// ListingRecord is one seller listing scraped from a product's listings view.
type ListingRecord struct {
	Key               string  `json:"key"`
	Condition         string  `json:"condition"`
	Price             float64 `json:"price"`
	ShippingPrice     float64 `json:"shipping_price"`
	ShippingIncluded  bool    `json:"shipping_included,omitempty"`
	SellerName        string  `json:"seller_name"`
	SellerID          string  `json:"seller_id,omitempty"`
	QuantityAvailable int     `json:"quantity_available"`
	AdditionalInfo    string  `json:"additional_info,omitempty"`
}

// TotalPrice is the listing price plus shipping.
func (l *ListingRecord) TotalPrice() float64 {
	return l.Price + l.ShippingPrice
}

// Table is a parsed table. Rows hold either a map[string]string (cells keyed
// by header) or a []string when the row shape does not match the headers.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []any    `json:"rows"`
}

// Stat is a label/value pair pulled from a dialog.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SnapshotPayload is the parsed content of the sales history dialog.
type SnapshotPayload struct {
	Title  string  `json:"title"`
	Tables []Table `json:"tables"`
	Stats  []Stat  `json:"stats"`
	Text   string  `json:"text"`
}

// IsEmpty reports whether nothing useful was extracted.
func (s *SnapshotPayload) IsEmpty() bool {
	return len(s.Tables) == 0 && len(s.Stats) == 0 && s.Text == ""
}

// PaginationCursor is read from the rendered pager every time a listings page loads.
type PaginationCursor struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

// SaleObservation is a most-recent-sale value seen for a product page at a point in time.
type SaleObservation struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}
