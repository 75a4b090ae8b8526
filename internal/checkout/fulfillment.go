package checkout

import (
	"strconv"
	"strings"

	"github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/pkg/paypal"
	"github.com/reddragons/storefront-backend/pkg/printful"
)

// BuildFulfillmentOrder maps a capture and the charged items onto a
// fulfillment order. Items whose id is not a fulfillment variant id, such as
// demo products, cannot be fulfilled and are returned in skipped.
func BuildFulfillmentOrder(capture *paypal.Capture, items []cart.Item) (printful.OrderRequest, []string) {
	req := printful.OrderRequest{
		ExternalID: capture.OrderID,
		Shipping: printful.Shipping{
			Name:        recipientName(capture),
			Address1:    capture.Address.AddressLine1,
			City:        capture.Address.AdminArea2,
			StateCode:   capture.Address.AdminArea1,
			CountryCode: capture.Address.CountryCode,
			Zip:         capture.Address.PostalCode,
		},
		Items: make([]printful.OrderItem, 0, len(items)),
	}

	var skipped []string
	for _, item := range items {
		variantID, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil || variantID <= 0 {
			skipped = append(skipped, item.ID)
			continue
		}
		req.Items = append(req.Items, printful.OrderItem{VariantID: variantID, Quantity: item.Quantity})
	}
	return req, skipped
}

func recipientName(capture *paypal.Capture) string {
	name := strings.TrimSpace(capture.Payer.GivenName + " " + capture.Payer.Surname)
	if name == "" {
		name = strings.TrimSpace(capture.ShippingName)
	}
	return name
}
