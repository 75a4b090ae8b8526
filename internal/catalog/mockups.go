package catalog

import "github.com/shopspring/decimal"

// mockups replace the upstream image set for products whose exact title
// matches. Both capitalizations of the gym shirt appear upstream.
var mockups = map[string][]string{
	"Unisex Battalion T-Shirt": {
		"/src/assets/black-tee.png",
		"/src/assets/maroon-tee.png",
	},
	"Fitted Battalion Gym T-shirt": {
		"/src/assets/fitted-front.png",
		"/src/assets/fitted-back.png",
	},
	"Fitted Battalion Gym T-Shirt": {
		"/src/assets/fitted-front.png",
		"/src/assets/fitted-back.png",
	},
	"Men's Battalion Fleece Shorts": {
		"/src/assets/fleece-shorts.png",
	},
	"Unisex Battalion Hoodie": {
		"/src/assets/hoodie-front.png",
		"/src/assets/hoodie-back.png",
	},
	"Battalion Tank Top": {
		"/src/assets/tanktop.png",
	},
}

// MockupFor returns the override image list for title.
func MockupFor(title string) ([]string, bool) {
	images, ok := mockups[title]
	if !ok {
		return nil, false
	}
	out := make([]string, len(images))
	copy(out, images)
	return out, true
}

type demoProduct struct {
	title string
	price string
}

var demoProducts = []demoProduct{
	{title: "Red Dragons T-Shirt", price: "25.00"},
	{title: "Red Dragons Hoodie", price: "45.00"},
	{title: "Athletic Shorts", price: "30.00"},
	{title: "Red Dragons Hat", price: "20.00"},
}

// DemoProducts returns the fixed shop items.
func DemoProducts() []Product {
	out := make([]Product, 0, len(demoProducts))
	for _, d := range demoProducts {
		out = append(out, Product{
			ID:    d.title,
			Title: d.title,
			Price: FormatPrice(decimal.RequireFromString(d.price)),
			Demo:  true,
		})
	}
	return out
}

// DemoPrice returns the fixed price of a demo product.
func DemoPrice(title string) (decimal.Decimal, bool) {
	for _, d := range demoProducts {
		if d.title == title {
			return decimal.RequireFromString(d.price), true
		}
	}
	return decimal.Zero, false
}
