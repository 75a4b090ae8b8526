package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reddragons/storefront-backend/pkg/db"
	"github.com/reddragons/storefront-backend/pkg/db/models"
	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
	"github.com/reddragons/storefront-backend/pkg/pagination"
	"github.com/reddragons/storefront-backend/pkg/types"
)

// RecordInput is everything known about a captured payment.
type RecordInput struct {
	UserID        *uuid.UUID
	Items         []types.OrderItem
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	PayPalOrderID string
	PayPalDetails map[string]any
}

type Service interface {
	Record(ctx context.Context, input RecordInput) (*models.Order, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

// Record writes the order for a capture. A second call for the same PayPal
// order returns the stored record instead of writing another.
func (s *service) Record(ctx context.Context, input RecordInput) (*models.Order, error) {
	if input.PayPalOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}

	order := &models.Order{
		UserID:        input.UserID,
		Items:         types.OrderItems(input.Items),
		Subtotal:      input.Subtotal,
		Shipping:      input.Shipping,
		Total:         input.Total,
		Currency:      input.Currency,
		PayPalOrderID: input.PayPalOrderID,
		PayPalDetails: types.JSONMap(input.PayPalDetails),
	}
	created, err := s.repo.Create(ctx, order)
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order record")
	}

	existing, findErr := s.repo.FindByPayPalOrderID(ctx, input.PayPalOrderID)
	if findErr != nil || existing == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already recorded")
	}
	return existing, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view orders")
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &HistoryPage{Orders: make([]Summary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		page.Orders = append(page.Orders, NewSummary(row))
	}
	return page, nil
}
