package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stackmesh/storefront-backend/internal/products"
	"github.com/stackmesh/storefront-backend/pkg/db/models"
	"github.com/stackmesh/storefront-backend/pkg/enums"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	productsDDL := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT NOT NULL,
  price NUMERIC,
  stock INTEGER NOT NULL DEFAULT 0,
  tags TEXT NOT NULL DEFAULT '{}',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartsDDL := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItemsDDL := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_add NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`

	for _, ddl := range []string{productsDDL, cartsDDL, cartItemsDDL} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	return db
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db), products.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedCartProduct(t *testing.T, db *gorm.DB, price string, active bool) *models.Product {
	t.Helper()

	var priceValue *decimal.Decimal
	if price != "" {
		parsed := decimal.RequireFromString(price)
		priceValue = &parsed
	}

	product := &models.Product{
		ID:       uuid.New(),
		Name:     "wireless mouse",
		Category: enums.ProductCategoryElectronics,
		Price:    priceValue,
		Stock:    25,
		Tags:     pq.StringArray{},
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)
	if !active {
		require.NoError(t, db.Exec("UPDATE products SET is_active = 0 WHERE id = ?", product.ID).Error)
		product.IsActive = false
	}
	return product
}

func TestCartAddItem(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	product := seedCartProduct(t, db, "19.99", true)

	cart, err := svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, userID, cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, product.ID, cart.Items[0].ProductID)
	assert.Equal(t, "wireless mouse", cart.Items[0].ProductName)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].PriceAtAdd.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("39.98")))
}

func TestCartAddItemAggregatesAndFreezesPrice(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	product := seedCartProduct(t, db, "10.00", true)

	_, err := svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	// a later catalog price change must not touch the frozen line price
	require.NoError(t, db.Exec("UPDATE products SET price = '25.00' WHERE id = ?", product.ID).Error)

	cart, err := svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].PriceAtAdd.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("30.00")))
}

func TestCartAddItemValidation(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedCartProduct(t, db, "5.00", true)
	_, err := svc.AddItem(ctx, userID, product.ID, 0)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.AddItem(ctx, userID, uuid.New(), 1)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	_, err = svc.AddItem(ctx, userID, product.ID, maxLineQuantity+1)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	inactive := seedCartProduct(t, db, "5.00", false)
	_, err = svc.AddItem(ctx, userID, inactive.ID, 1)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, "product not found", typed.Message())

	unpriced := seedCartProduct(t, db, "", true)
	_, err = svc.AddItem(ctx, userID, unpriced.ID, 1)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "product has no price", typed.Message())
}

func TestCartUpdateItemQuantity(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	product := seedCartProduct(t, db, "4.50", true)

	_, err := svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	cart, err := svc.UpdateItemQuantity(ctx, userID, product.ID, 5)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("22.50")))

	_, err = svc.UpdateItemQuantity(ctx, userID, product.ID, 0)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.UpdateItemQuantity(ctx, userID, uuid.New(), 2)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCartRemoveItem(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	product := seedCartProduct(t, db, "9.99", true)

	_, err := svc.AddItem(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, userID, product.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())

	_, err = svc.RemoveItem(ctx, userID, product.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCartClear(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	first := seedCartProduct(t, db, "3.00", true)
	second := seedCartProduct(t, db, "7.00", true)

	_, err := svc.AddItem(ctx, userID, first.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userID, second.ID, 2)
	require.NoError(t, err)

	cart, err := svc.ClearCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())
}

func TestCartGetCartCreatesEmptyCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)

	userID := uuid.New()
	cart, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, cart.UserID)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())

	again, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	other, err := svc.GetCart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, other.ID)
}

func TestCartSummary(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	first := seedCartProduct(t, db, "10.00", true)
	second := seedCartProduct(t, db, "2.50", true)

	_, err := svc.AddItem(ctx, userID, first.ID, 3)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, userID, second.ID, 1)
	require.NoError(t, err)

	summary := cart.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, cart.ID, summary.ID)
	assert.Equal(t, 4, summary.ItemCount)
	assert.True(t, summary.Subtotal.Equal(decimal.RequireFromString("32.50")))

	var empty *CartDTO
	assert.Nil(t, empty.Summary())
}

func TestCartStockValidation(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	product := seedCartProduct(t, db, "5.00", true)
	require.NoError(t, db.Exec("UPDATE products SET stock = 3 WHERE id = ?", product.ID).Error)

	_, err := svc.AddItem(ctx, userID, product.ID, 4)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "insufficient stock", typed.Message())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4, details["requested"])
	assert.Equal(t, 3, details["available"])

	cart, err := svc.AddItem(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	// aggregating past the available stock is rejected too
	_, err = svc.AddItem(ctx, userID, product.ID, 2)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "insufficient stock", typed.Message())

	cart, err = svc.UpdateItemQuantity(ctx, userID, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	_, err = svc.UpdateItemQuantity(ctx, userID, product.ID, 4)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}
