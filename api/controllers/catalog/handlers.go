package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reddragons/storefront-backend/api/responses"
	catalogsvc "github.com/reddragons/storefront-backend/internal/catalog"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
)

type productLoader interface {
	ListProducts(ctx context.Context) ([]catalogsvc.Product, error)
	Product(ctx context.Context, productID string) (catalogsvc.Product, error)
}

type productResponse struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Price    string               `json:"price"`
	Image    string               `json:"image"`
	Demo     bool                 `json:"demo,omitempty"`
	Variants []catalogsvc.Variant `json:"variants,omitempty"`
	Images   []string             `json:"images,omitempty"`
}

// ListProducts always answers 200 with the best list available; a failed
// upstream listing has already been logged by the loader.
func ListProducts(loader productLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if loader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		products, err := loader.ListProducts(r.Context())
		degraded := err != nil
		out := make([]productResponse, 0, len(products))
		for _, p := range products {
			out = append(out, newProduct(p))
		}
		responses.WriteSuccess(w, map[string]any{
			"products": out,
			"degraded": degraded,
		})
	}
}

func ProductDetail(loader productLoader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if loader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		productID := strings.TrimSpace(chi.URLParam(r, "productID"))

		product, err := loader.Product(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProduct(product))
	}
}

func newProduct(p catalogsvc.Product) productResponse {
	out := productResponse{
		ID:    p.ID,
		Title: p.Title,
		Price: p.Price,
		Image: p.Image,
		Demo:  p.Demo,
	}
	if p.Detail != nil {
		out.Variants = p.Detail.Variants
		out.Images = p.Detail.Images
	}
	return out
}
