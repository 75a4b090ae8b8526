package catalog

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/logger"
	"github.com/reddragons/storefront-backend/pkg/printful"
)

// Source is the fulfillment catalog. *printful.Client and *CachedSource
// satisfy it.
type Source interface {
	ListProducts(ctx context.Context) ([]printful.ProductSummary, error)
	GetProduct(ctx context.Context, productID string) (*printful.ProductDetail, error)
}

// Loader builds catalog view models from a Source.
type Loader struct {
	source      Source
	logg        *logger.Logger
	includeDemo bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDemoProducts appends the fixed shop items to every listing.
func WithDemoProducts(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.includeDemo = enabled
	}
}

func NewLoader(source Source, logg *logger.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{source: source, logg: logg}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// ListProducts lists the catalog with placeholder prices, then fetches every
// product's detail concurrently and fills in the minimum variant price. A
// failed detail fetch leaves that product's placeholder. The returned error
// is set only when the listing itself failed; the products returned are
// still the best available.
func (l *Loader) ListProducts(ctx context.Context) ([]Product, error) {
	summaries, err := l.source.ListProducts(ctx)
	if err != nil {
		l.logError(ctx, "catalog.list.failed", err)
		return l.withDemo(nil), err
	}

	products := make([]Product, 0, len(summaries))
	for _, s := range summaries {
		products = append(products, Product{
			ID:    printfulID(s.ID),
			Title: s.Name,
			Price: PlaceholderPrice,
			Image: s.ThumbnailURL,
		})
	}

	var g errgroup.Group
	for i := range products {
		g.Go(func() error {
			detail, err := l.source.GetProduct(ctx, products[i].ID)
			if err != nil {
				l.logError(l.withProduct(ctx, products[i].ID), "catalog.detail.failed", err)
				return nil
			}
			if min, ok := MinVariantPrice(detail.SyncVariants); ok {
				products[i].Price = FormatPrice(min)
			}
			return nil
		})
	}
	_ = g.Wait()

	return l.withDemo(products), nil
}

// LoadDetail fills in variants, images and the minimum price. A product that
// is already detailed is returned as is. On failure the product is returned
// unchanged along with the error.
func (l *Loader) LoadDetail(ctx context.Context, p Product) (Product, error) {
	if p.Detailed() {
		return p, nil
	}
	if p.Demo {
		p.Detail = &Detail{Variants: []Variant{}, Images: []string{}}
		return p, nil
	}

	detail, err := l.source.GetProduct(ctx, p.ID)
	if err != nil {
		l.logError(l.withProduct(ctx, p.ID), "catalog.detail.failed", err)
		return p, err
	}
	return applyDetail(p, detail), nil
}

// Product loads a single detailed product by id. Demo products resolve by
// title when enabled.
func (l *Loader) Product(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if l.includeDemo {
		for _, demo := range DemoProducts() {
			if demo.ID == productID {
				return l.Select(demo).Detail(ctx)
			}
		}
	}
	return l.Select(Product{ID: productID, Price: PlaceholderPrice}).Detail(ctx)
}

// Select starts a selection for p. Detail is fetched at most once for the
// lifetime of the selection.
func (l *Loader) Select(p Product) *Selection {
	return &Selection{loader: l, product: p}
}

// Selection memoizes the detail of the currently selected product.
type Selection struct {
	loader  *Loader
	mu      sync.Mutex
	product Product
}

// Product returns the best data available without fetching.
func (s *Selection) Product() Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product
}

func (s *Selection) Detail(ctx context.Context) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.product.Detailed() {
		return s.product, nil
	}
	p, err := s.loader.LoadDetail(ctx, s.product)
	if err != nil {
		return s.product, err
	}
	s.product = p
	return p, nil
}

func applyDetail(p Product, detail *printful.ProductDetail) Product {
	if p.Title == "" {
		p.Title = detail.SyncProduct.Name
	}
	if p.Image == "" {
		p.Image = detail.SyncProduct.ThumbnailURL
	}
	if p.Price == "" {
		p.Price = PlaceholderPrice
	}
	if min, ok := MinVariantPrice(detail.SyncVariants); ok {
		p.Price = FormatPrice(min)
	}

	images := collectImages(detail)
	if override, ok := MockupFor(p.Title); ok {
		images = override
	}
	p.Detail = &Detail{
		Variants: toVariants(detail.SyncVariants),
		Images:   images,
	}
	return p
}

func (l *Loader) withDemo(products []Product) []Product {
	if products == nil {
		products = []Product{}
	}
	if !l.includeDemo {
		return products
	}
	return append(products, DemoProducts()...)
}

func (l *Loader) withProduct(ctx context.Context, productID string) context.Context {
	if l.logg == nil {
		return ctx
	}
	return l.logg.WithField(ctx, "product_id", productID)
}

func (l *Loader) logError(ctx context.Context, msg string, err error) {
	if l.logg == nil {
		return
	}
	l.logg.Error(ctx, msg, err)
}
