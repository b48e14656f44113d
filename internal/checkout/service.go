package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stackmesh/storefront-backend/internal/cart"
	"github.com/stackmesh/storefront-backend/internal/orders"
	"github.com/stackmesh/storefront-backend/internal/products"
	"github.com/stackmesh/storefront-backend/pkg/db/models"
	"github.com/stackmesh/storefront-backend/pkg/enums"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
	"github.com/stackmesh/storefront-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a cart into an order atomically.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error)
}

// OrderCreatedEvent is emitted when a checkout transaction commits.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	ItemCount  int             `json:"item_count"`
}

type service struct {
	tx          txRunner
	cartRepo    *cart.Repository
	productRepo *products.Repository
	ordersRepo  orders.Repository
	outbox      outboxPublisher
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo *cart.Repository,
	productRepo *products.Repository,
	ordersRepo orders.Repository,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		ordersRepo:  ordersRepo,
		outbox:      publisher,
	}, nil
}

// Execute converts the user's cart into a pending order. Every step runs in
// one transaction: stock checks, order creation, stock decrements, and the
// cart wipe all commit together or not at all.
func (s *service) Execute(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var result *orders.OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		record, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
		}

		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(record.Items))
		for _, item := range record.Items {
			product, err := productRepo.FindByIDForUpdate(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeConflict, "product no longer available").
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeConflict, "product no longer available").
					WithDetails(map[string]any{
						"product_id": product.ID,
						"product":    product.Name,
					})
			}
			if product.Stock < item.Quantity {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
					WithDetails(map[string]any{
						"product_id": product.ID,
						"product":    product.Name,
						"requested":  item.Quantity,
						"available":  product.Stock,
					})
			}

			productID := item.ProductID
			orderItems = append(orderItems, models.OrderItem{
				ProductID:       &productID,
				ProductName:     product.Name,
				Quantity:        item.Quantity,
				PriceAtPurchase: item.PriceAtAdd,
			})
			total = total.Add(item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order, err := ordersRepo.Create(ctx, &models.Order{
			UserID:     userID,
			Status:     enums.OrderStatusPending,
			TotalPrice: total,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := ordersRepo.CreateItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		for _, item := range record.Items {
			ok, err := productRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				// stock was verified under lock above; a miss here means
				// the transaction's view is broken
				return pkgerrors.Newf(pkgerrors.CodeInternal, "stock decrement failed for product %s", item.ProductID)
			}
		}

		if err := cartRepo.DeleteItemsForCart(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: OrderCreatedEvent{
				OrderID:    order.ID,
				UserID:     userID,
				TotalPrice: total,
				ItemCount:  len(orderItems),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		created, err := ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result = orders.FromModel(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
