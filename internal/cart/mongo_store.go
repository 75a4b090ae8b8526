package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

// itemDocument is the stored shape of a cart line. Prices are numbers so
// the documents stay readable by other clients of the collection.
type itemDocument struct {
	ID       string  `bson:"id"`
	Title    string  `bson:"title"`
	Price    float64 `bson:"price"`
	Image    string  `bson:"image"`
	Quantity int     `bson:"quantity"`
}

type cartDocument struct {
	UserID string          `bson:"_id"`
	Items  *[]itemDocument `bson:"items,omitempty"`
}

// MongoDocumentStore keeps one document per user in the carts collection,
// keyed by user id.
type MongoDocumentStore struct {
	collection *mongo.Collection
	opTimeout  time.Duration
}

func NewMongoDocumentStore(collection *mongo.Collection, opTimeout time.Duration) *MongoDocumentStore {
	return &MongoDocumentStore{collection: collection, opTimeout: opTimeout}
}

func (m *MongoDocumentStore) Load(ctx context.Context, userID string) ([]Item, bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc cartDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart document")
	}
	if doc.Items == nil {
		return nil, false, nil
	}
	return fromDocuments(*doc.Items), true, nil
}

// SaveItems sets only the items field, creating the document if needed.
func (m *MongoDocumentStore) SaveItems(ctx context.Context, userID string, items []Item) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{"items": toDocuments(items)}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, opts); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart document")
	}
	return nil
}

func (m *MongoDocumentStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

func toDocuments(items []Item) []itemDocument {
	docs := make([]itemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, itemDocument{
			ID:       item.ID,
			Title:    item.Title,
			Price:    item.Price.InexactFloat64(),
			Image:    item.Image,
			Quantity: item.Quantity,
		})
	}
	return docs
}

// fromDocuments drops unusable lines and folds repeated ids into one line,
// since other writers of the collection may not keep ids unique.
func fromDocuments(docs []itemDocument) []Item {
	items := make([]Item, 0, len(docs))
	index := make(map[string]int, len(docs))
	for _, doc := range docs {
		if doc.ID == "" || doc.Quantity < 1 {
			continue
		}
		if i, ok := index[doc.ID]; ok {
			items[i].Quantity += doc.Quantity
			continue
		}
		index[doc.ID] = len(items)
		items = append(items, Item{
			ID:       doc.ID,
			Title:    doc.Title,
			Price:    decimal.NewFromFloat(doc.Price).Round(2),
			Image:    doc.Image,
			Quantity: doc.Quantity,
		})
	}
	return items
}
