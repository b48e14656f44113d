package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stackmesh/storefront-backend/pkg/db/models"
)

// CartItemDTO is one product line in the cart payload.
type CartItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceAtAdd  decimal.Decimal `json:"price_at_add"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CartDTO is the cart payload returned to clients.
type CartDTO struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Items     []CartItemDTO `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CartSummaryDTO carries the totals without the line items.
type CartSummaryDTO struct {
	ID        uuid.UUID       `json:"id"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Summary collapses the cart payload into counts and totals.
func (c *CartDTO) Summary() *CartSummaryDTO {
	if c == nil {
		return nil
	}
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return &CartSummaryDTO{
		ID:        c.ID,
		ItemCount: count,
		Subtotal:  c.Subtotal,
		UpdatedAt: c.UpdatedAt,
	}
}

// FromModel maps the persisted cart onto the transport shape, computing
// line totals from the frozen price_at_add values.
func FromModel(c *models.Cart) *CartDTO {
	if c == nil {
		return nil
	}

	items := make([]CartItemDTO, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, item := range c.Items {
		lineTotal := item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		items = append(items, CartItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			PriceAtAdd:  item.PriceAtAdd,
			LineTotal:   lineTotal,
		})
	}

	return &CartDTO{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     items,
		Subtotal:  subtotal,
		UpdatedAt: c.UpdatedAt,
	}
}
