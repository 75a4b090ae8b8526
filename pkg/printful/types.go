package printful

// ProductSummary is one entry of GET /store/products.
type ProductSummary struct {
	ID           int64  `json:"id"`
	ExternalID   string `json:"external_id,omitempty"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// File is an attachment on a sync product or variant.
type File struct {
	ID           int64  `json:"id,omitempty"`
	Type         string `json:"type,omitempty"`
	PreviewURL   string `json:"preview_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type SyncProduct struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
	Files        []File `json:"files"`
}

type SyncVariant struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RetailPrice string `json:"retail_price"`
	Currency    string `json:"currency,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Files       []File `json:"files"`
}

// ProductDetail is the payload of GET /store/products/{id}.
type ProductDetail struct {
	SyncProduct  SyncProduct   `json:"sync_product"`
	SyncVariants []SyncVariant `json:"sync_variants"`
}

// Shipping is the recipient block of an order.
type Shipping struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	StateCode   string `json:"state_code"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
}

type OrderItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	ExternalID string      `json:"external_id"`
	Shipping   Shipping    `json:"shipping"`
	Items      []OrderItem `json:"items"`
}

// Order is the subset of the created order we keep.
type Order struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}
