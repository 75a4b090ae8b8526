package catalog

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/pkg/printful"
)

// PlaceholderPrice is shown until a product's variants have been priced.
const PlaceholderPrice = "—"

// Variant is one purchasable configuration of a product.
type Variant struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RetailPrice string `json:"retail_price"`
}

// Detail is the variant and image data loaded when a product is selected.
type Detail struct {
	Variants []Variant `json:"variants"`
	Images   []string  `json:"images"`
}

// Product is the catalog view model. A product is either a summary, as
// returned by a listing, or detailed once Detail is set.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	Image string `json:"image"`
	// Demo products are fixed shop items with no variants; their id is the
	// title.
	Demo   bool    `json:"demo,omitempty"`
	Detail *Detail `json:"-"`
}

func (p Product) Detailed() bool {
	return p.Detail != nil
}

// HasVariants reports whether a variant must be chosen before adding the
// product to a cart.
func (p Product) HasVariants() bool {
	return p.Detail != nil && len(p.Detail.Variants) > 0
}

// Variant looks up a loaded variant by id.
func (p Product) Variant(id int64) (Variant, bool) {
	if p.Detail == nil {
		return Variant{}, false
	}
	for _, v := range p.Detail.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// FormatPrice renders a price the way the storefront displays it.
func FormatPrice(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// MinVariantPrice returns the lowest parseable retail price, or false when
// no variant has one.
func MinVariantPrice(variants []printful.SyncVariant) (decimal.Decimal, bool) {
	var (
		min   decimal.Decimal
		found bool
	)
	for _, v := range variants {
		price, err := decimal.NewFromString(v.RetailPrice)
		if err != nil {
			continue
		}
		if !found || price.LessThan(min) {
			min = price
			found = true
		}
	}
	return min, found
}

// collectImages unions the product thumbnail, product file previews and
// thumbnails, and variant previews, in that order, without duplicates.
func collectImages(detail *printful.ProductDetail) []string {
	seen := map[string]struct{}{}
	images := []string{}
	add := func(url string) {
		if url == "" {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		images = append(images, url)
	}

	add(detail.SyncProduct.ThumbnailURL)
	for _, f := range detail.SyncProduct.Files {
		add(f.PreviewURL)
		add(f.ThumbnailURL)
	}
	for _, v := range detail.SyncVariants {
		for _, f := range v.Files {
			add(f.PreviewURL)
		}
		add(v.PreviewURL)
	}
	return images
}

func toVariants(in []printful.SyncVariant) []Variant {
	out := make([]Variant, 0, len(in))
	for _, v := range in {
		out = append(out, Variant{ID: v.ID, Name: v.Name, RetailPrice: v.RetailPrice})
	}
	return out
}

func printfulID(id int64) string {
	return strconv.FormatInt(id, 10)
}
