package models

// NotAvailable is the sentinel carried by optional fields that could not be
// found on the page, so every record has the same shape on the wire.
const NotAvailable = "N/A"

// ProductRecord is one product listing extracted from a search results page.
//
// All values are display strings exactly as rendered by the source, trimmed
// and whitespace-collapsed. Prices are not converted to numbers because the
// sources format them with locale-specific separators and currency glyphs.
type ProductRecord struct {
	// Name is the product title. Never empty.
	Name string `json:"name"`

	Rating               string `json:"rating"`
	ReviewCount          string `json:"reviews"`
	RecentPurchaseVolume string `json:"boughtInPastMonth"`
	Price                string `json:"price"`
	OriginalPrice        string `json:"originalPrice"`
	DiscountLabel        string `json:"discount"`
	Availability         string `json:"availability"`

	// ImageURL and DetailURL are absolute URLs resolved against the source
	// origin, or the field sentinel when the page had none.
	ImageURL  string `json:"image"`
	DetailURL string `json:"link"`
}

// Field names used by source field tables to address ProductRecord fields.
const (
	FieldName                 = "name"
	FieldRating               = "rating"
	FieldReviewCount          = "reviews"
	FieldRecentPurchaseVolume = "boughtInPastMonth"
	FieldPrice                = "price"
	FieldOriginalPrice        = "originalPrice"
	FieldDiscountLabel        = "discount"
	FieldAvailability         = "availability"
	FieldImageURL             = "image"
	FieldDetailURL            = "link"
)

// OptionalFields lists every optional field in wire order.
var OptionalFields = []string{
	FieldRating,
	FieldReviewCount,
	FieldRecentPurchaseVolume,
	FieldPrice,
	FieldOriginalPrice,
	FieldDiscountLabel,
	FieldAvailability,
	FieldImageURL,
	FieldDetailURL,
}

// IsKnownField reports whether name addresses a ProductRecord field.
func IsKnownField(name string) bool {
	if name == FieldName {
		return true
	}
	for _, f := range OptionalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Set assigns value to the field addressed by name. Unknown names are ignored.
func (p *ProductRecord) Set(name, value string) {
	switch name {
	case FieldName:
		p.Name = value
	case FieldRating:
		p.Rating = value
	case FieldReviewCount:
		p.ReviewCount = value
	case FieldRecentPurchaseVolume:
		p.RecentPurchaseVolume = value
	case FieldPrice:
		p.Price = value
	case FieldOriginalPrice:
		p.OriginalPrice = value
	case FieldDiscountLabel:
		p.DiscountLabel = value
	case FieldAvailability:
		p.Availability = value
	case FieldImageURL:
		p.ImageURL = value
	case FieldDetailURL:
		p.DetailURL = value
	}
}

// NewProductRecord returns a record whose optional fields all carry NotAvailable.
func NewProductRecord() ProductRecord {
	var p ProductRecord
	for _, f := range OptionalFields {
		p.Set(f, NotAvailable)
	}
	return p
}
