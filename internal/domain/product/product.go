package product

// DefaultCurrency is assumed when a source omits the currency.
const DefaultCurrency = "USD"

// Product is a catalog record returned by one source. Never mutated after creation:
// a refresh produces a new Product that replaces the old snapshot.
type Product struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       string  `json:"price,omitempty"` // opaque display string
	Currency    string  `json:"currency,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	URL         string  `json:"url,omitempty"`
	Rating      float64 `json:"rating"` // 0-5, 0 = unknown
	Reviews     int     `json:"reviews"`
	Available   bool    `json:"available"`
	Merchant    string  `json:"merchant,omitempty"`
}

// Key returns the globally unique identity of the product (source + id).
func (p Product) Key() string { return p.Source + ":" + p.ID }

// Text returns the searchable text of the product: title and description.
func (p Product) Text() string { return p.Title + " " + p.Description }

// Candidate is a product scored against a keyword set within one aggregation call.
type Candidate struct {
	Product Product
	Score   float64
	// Keyword is the query that retrieved the product (diagnostics only).
	Keyword string
}

// SearchOptions narrows a catalog search.
type SearchOptions struct {
	Limit   int
	Country string
}
