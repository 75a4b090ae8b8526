package cart

import "context"

// DocumentStore mirrors a signed-in user's cart to a remote document.
type DocumentStore interface {
	// Load returns the items field of the user's cart document. found is
	// false when the document or its items field does not exist.
	Load(ctx context.Context, userID string) (items []Item, found bool, err error)
	// SaveItems overwrites the items field only, creating the document when
	// it does not exist. Other fields are left untouched.
	SaveItems(ctx context.Context, userID string, items []Item) error
}
