package cart

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	cartdto "github.com/reddragons/storefront-backend/api/controllers/cart/dto"
	"github.com/reddragons/storefront-backend/api/middleware"
	"github.com/reddragons/storefront-backend/api/responses"
	"github.com/reddragons/storefront-backend/api/validators"
	cartsvc "github.com/reddragons/storefront-backend/internal/cart"
	"github.com/reddragons/storefront-backend/internal/catalog"
	"github.com/reddragons/storefront-backend/internal/checkout"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

type productResolver interface {
	Product(ctx context.Context, productID string) (catalog.Product, error)
}

// CartFetch returns the session cart.
func CartFetch(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(r, store.Snapshot()))
	}
}

// CartAddItem adds one unit of a product or an explicit item.
func CartAddItem(products productResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var item cartsvc.NewItem
		if strings.TrimSpace(payload.ProductID) != "" {
			if products == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
				return
			}
			item, err = resolveProductItem(r.Context(), products, payload)
		} else {
			item, err = explicitItem(payload)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := store.AddItem(r.Context(), item)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCart(r, snap))
	}
}

// CartRemoveItem drops a line. Unknown ids leave the cart unchanged.
func CartRemoveItem(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.PathParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(r, store.RemoveItem(r.Context(), itemID)))
	}
}

func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := storeFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(r, store.Clear(r.Context())))
	}
}

func storeFromContext(r *http.Request) (*cartsvc.Store, error) {
	store := middleware.CartStoreFromContext(r.Context())
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart session missing")
	}
	return store, nil
}

// resolveProductItem prices the line from the catalog. Products with
// variants need a variant and the line id is the variant id; demo products
// use their title as id.
func resolveProductItem(ctx context.Context, products productResolver, payload cartdto.AddItemRequest) (cartsvc.NewItem, error) {
	product, err := products.Product(ctx, payload.ProductID)
	if err != nil {
		return cartsvc.NewItem{}, err
	}

	if product.Demo {
		price, ok := catalog.DemoPrice(product.Title)
		if !ok {
			return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return cartsvc.NewItem{ID: product.Title, Title: product.Title, Price: price, Image: product.Image}, nil
	}

	if !product.HasVariants() {
		return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeValidation, "product has no purchasable variants")
	}
	if payload.VariantID == nil {
		return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required for this product").
			WithDetails(map[string]any{"variant_id": "required"})
	}
	variant, ok := product.Variant(*payload.VariantID)
	if !ok {
		return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown variant for product").
			WithDetails(map[string]any{"variant_id": "unknown"})
	}
	price, err := decimal.NewFromString(variant.RetailPrice)
	if err != nil {
		return cartsvc.NewItem{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "variant has no price")
	}

	title := strings.TrimSpace(variant.Name)
	if title == "" {
		title = product.Title
	}
	return cartsvc.NewItem{
		ID:    strconv.FormatInt(variant.ID, 10),
		Title: title,
		Price: price,
		Image: productImage(product),
	}, nil
}

// explicitItem accepts lines that are not fulfillment variants. Numeric ids
// would be shipped as variants, so they must come through product_id where
// the catalog sets the price; demo titles always carry their fixed price.
func explicitItem(payload cartdto.AddItemRequest) (cartsvc.NewItem, error) {
	id := strings.TrimSpace(payload.ID)
	if variantID, err := strconv.ParseInt(id, 10, 64); err == nil && variantID > 0 {
		return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeValidation, "catalog items must be added by product_id").
			WithDetails(map[string]any{"id": "catalog variant"})
	}
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = id
	}

	if price, ok := catalog.DemoPrice(id); ok {
		return cartsvc.NewItem{ID: id, Title: id, Price: price, Image: payload.Image}, nil
	}
	if payload.Price == nil {
		return cartsvc.NewItem{}, pkgerrors.New(pkgerrors.CodeValidation, "price is required").
			WithDetails(map[string]any{"price": "required"})
	}
	return cartsvc.NewItem{
		ID:    id,
		Title: title,
		Price: *payload.Price,
		Image: payload.Image,
	}, nil
}

func productImage(p catalog.Product) string {
	if p.Image != "" {
		return p.Image
	}
	if p.Detail != nil && len(p.Detail.Images) > 0 {
		return p.Detail.Images[0]
	}
	return ""
}

func newCart(r *http.Request, snap cartsvc.Snapshot) cartdto.Cart {
	lines := make([]cartdto.CartLine, 0, len(snap.Items))
	for _, item := range snap.Items {
		lines = append(lines, cartdto.CartLine{
			ID:        item.ID,
			Title:     item.Title,
			Price:     item.Price.StringFixed(2),
			Image:     item.Image,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	return cartdto.Cart{
		SessionID:         middleware.CartSessionFromContext(r.Context()),
		Items:             lines,
		Subtotal:          snap.Subtotal().StringFixed(2),
		Count:             snap.Count(),
		CheckoutAvailable: checkout.Available(snap),
	}
}
