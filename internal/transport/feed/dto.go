package feed

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/kailas-cloud/affilink/internal/domain/product"
)

type feedResponse struct {
	Products []feedProduct `json:"products"`
}

// feedProduct accepts both Awin-style and plain field names.
type feedProduct struct {
	ID               flexString `json:"id"`
	ProductName      string     `json:"product_name"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	SearchPrice      flexString `json:"search_price"`
	Price            flexString `json:"price"`
	Currency         string     `json:"currency"`
	ImageURL         string     `json:"image_url"`
	URL              string     `json:"url"`
	MerchantDeepLink string     `json:"merchant_deep_link"`
	Rating           flexString `json:"rating"`
	Reviews          flexString `json:"reviews"`
	InStock          *flexBool  `json:"in_stock"`
	MerchantName     string     `json:"merchant_name"`
}

func (f feedProduct) toDomain(source string) product.Product {
	p := product.Product{
		ID:          string(f.ID),
		Source:      source,
		Title:       firstNonEmpty(f.ProductName, f.Title),
		Description: f.Description,
		Price:       firstNonEmpty(string(f.SearchPrice), string(f.Price)),
		Currency:    firstNonEmpty(f.Currency, product.DefaultCurrency),
		ImageURL:    f.ImageURL,
		URL:         firstNonEmpty(f.MerchantDeepLink, f.URL),
		Available:   true,
		Merchant:    f.MerchantName,
	}
	if r, err := strconv.ParseFloat(string(f.Rating), 64); err == nil && r > 0 {
		p.Rating = min(r, 5)
	}
	if n, err := strconv.Atoi(string(f.Reviews)); err == nil && n > 0 {
		p.Reviews = n
	}
	if f.InStock != nil {
		p.Available = bool(*f.InStock)
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// flexString decodes a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexBool decodes true/false, 1/0 and "1"/"0".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "true", "1", "yes":
		*b = true
	case "false", "0", "no", "", "null":
		*b = false
	default:
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = flexBool(v)
	}
	return nil
}
