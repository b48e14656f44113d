package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stackmesh/storefront-backend/pkg/db"
	"github.com/stackmesh/storefront-backend/pkg/db/models"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
)

const maxLineQuantity = 100

// Service exposes the cart operations available to authenticated users.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo     *Repository
	products productReader
}

// NewService constructs a cart service instance.
func NewService(repo *Repository, products productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return FromModel(cart), nil
}

// AddItem puts a product in the cart. Adding a product already present
// increases its quantity; the unit price stays frozen at what it was when
// the product first entered the cart.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		// inactive listings are indistinguishable from missing ones
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product has no price")
	}

	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		newQuantity := existing.Quantity + quantity
		if newQuantity > maxLineQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", maxLineQuantity)
		}
		if product.Stock < newQuantity {
			return nil, insufficientStock(product, newQuantity)
		}
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, newQuantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment cart item")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if product.Stock < quantity {
			return nil, insufficientStock(product, quantity)
		}
		item := &models.CartItem{
			CartID:     cart.ID,
			ProductID:  productID,
			Quantity:   quantity,
			PriceAtAdd: *product.Price,
		}
		if _, createErr := s.repo.CreateItem(ctx, item); createErr != nil {
			if !db.IsUniqueViolation(createErr, "idx_cart_product") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, createErr, "create cart item")
			}
			// lost the insert race; fold into the winner's line
			winner, findErr := s.repo.FindItem(ctx, cart.ID, productID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "reload cart item")
			}
			if updErr := s.repo.UpdateItemQuantity(ctx, winner.ID, winner.Quantity+quantity); updErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, updErr, "increment cart item")
			}
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}

	return s.reload(ctx, userID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	item, err := s.findUserItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product no longer available")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.Stock < quantity {
		return nil, insufficientStock(product, quantity)
	}

	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.reload(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	item, err := s.findUserItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return s.reload(ctx, userID)
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := s.repo.DeleteItemsForCart(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return s.reload(ctx, userID)
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > maxLineQuantity {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", maxLineQuantity)
	}
	return nil
}

func insufficientStock(product *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
		"product_id": product.ID,
		"requested":  requested,
		"available":  product.Stock,
	})
}

func (s *service) findUserItem(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	return item, nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
	}
	return FromModel(cart), nil
}
