package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stackmesh/storefront-backend/pkg/db/models"
	"github.com/stackmesh/storefront-backend/pkg/enums"
	pkgerrors "github.com/stackmesh/storefront-backend/pkg/errors"
	"github.com/stackmesh/storefront-backend/pkg/pagination"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
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
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newProductService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func decimalPtr(value string) *decimal.Decimal {
	parsed := decimal.RequireFromString(value)
	return &parsed
}

func TestCreateProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)

	dto, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:     "  Trail Running Shoes  ",
		Category: enums.ProductCategorySports,
		Price:    decimalPtr("89.90"),
		Stock:    12,
		Tags:     []string{"Running", "  running ", "Outdoor"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Trail Running Shoes", dto.Name)
	assert.Equal(t, enums.ProductCategorySports.String(), dto.Category)
	require.NotNil(t, dto.Price)
	assert.True(t, dto.Price.Equal(decimal.RequireFromString("89.90")))
	assert.Equal(t, 12, dto.Stock)
	assert.Equal(t, []string{"running", "outdoor"}, dto.Tags)
	assert.True(t, dto.IsActive)
}

func TestCreateProductValidation(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"blank name", CreateProductInput{Name: "   ", Category: enums.ProductCategoryBooks}},
		{"bad category", CreateProductInput{Name: "thing", Category: enums.ProductCategory("gadgets")}},
		{"negative price", CreateProductInput{Name: "thing", Category: enums.ProductCategoryBooks, Price: decimalPtr("-1")}},
		{"negative stock", CreateProductInput{Name: "thing", Category: enums.ProductCategoryBooks, Stock: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.input)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestGetProductNotFound(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)

	_, err := svc.GetProduct(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Desk Lamp",
		Category: enums.ProductCategoryHome,
		Price:    decimalPtr("20.00"),
		Stock:    4,
	})
	require.NoError(t, err)

	newName := "Adjustable Desk Lamp"
	newStock := 9
	inactive := false
	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{
		Name:     &newName,
		Price:    decimalPtr("24.00"),
		Stock:    &newStock,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Name)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("24.00")))
	assert.Equal(t, 9, updated.Stock)
	assert.False(t, updated.IsActive)

	// untouched fields survive a partial update
	assert.Equal(t, enums.ProductCategoryHome.String(), updated.Category)
}

func TestUpdateProductValidation(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Puzzle",
		Category: enums.ProductCategoryToys,
		Price:    decimalPtr("8.00"),
	})
	require.NoError(t, err)

	blank := "  "
	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Name: &blank})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.UpdateProduct(ctx, uuid.New(), UpdateProductInput{Name: &blank})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDeleteProduct(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Face Cream",
		Category: enums.ProductCategoryBeauty,
		Price:    decimalPtr("14.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, created.ID))

	// the row survives for order history, only the flag flips
	var count int64
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", created.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = svc.DeleteProduct(ctx, created.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "product already inactive", typed.Message())

	err = svc.DeleteProduct(ctx, uuid.New())
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDecrementStockRefusesShortStock(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Product{
		Name:     "desk lamp",
		Category: enums.ProductCategoryHome,
		Price:    decimalPtr("19.00"),
		Stock:    5,
		Tags:     pq.StringArray{},
		IsActive: true,
	})
	require.NoError(t, err)

	ok, err := repo.DecrementStock(ctx, created.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// only 2 left, so the conditioned update must not match
	ok, err = repo.DecrementStock(ctx, created.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Stock)
}

func TestListProductsFilters(t *testing.T) {
	db := setupProductsTestDB(t)
	svc := newProductService(t, db)
	ctx := context.Background()

	base := time.Date(2026, 4, 5, 8, 0, 0, 0, time.UTC)
	marker := uuid.NewString()[:8]

	seed := func(name, price string, stock int, active bool, offset time.Duration) uuid.UUID {
		dto, err := svc.CreateProduct(ctx, CreateProductInput{
			Name:     marker + " " + name,
			Category: enums.ProductCategoryFood,
			Price:    decimalPtr(price),
			Stock:    stock,
		})
		require.NoError(t, err)
		created := base.Add(offset)
		require.NoError(t, db.Exec("UPDATE products SET created_at = ? WHERE id = ?", created, dto.ID).Error)
		if !active {
			require.NoError(t, db.Exec("UPDATE products SET is_active = 0 WHERE id = ?", dto.ID).Error)
		}
		return dto.ID
	}

	cheapID := seed("olive oil", "6.00", 10, true, 0)
	midID := seed("aged cheese", "18.00", 0, true, time.Minute)
	hiddenID := seed("truffle salt", "32.00", 5, false, 2*time.Minute)

	category := enums.ProductCategoryFood

	t.Run("price range", func(t *testing.T) {
		result, err := svc.ListProducts(ctx, ListProductsInput{
			Filters: ProductListFilters{
				Category: &category,
				PriceMin: decimalPtr("5.00"),
				PriceMax: decimalPtr("20.00"),
				Query:    marker,
			},
		})
		require.NoError(t, err)
		require.Len(t, result.Products, 2)
		ids := []uuid.UUID{result.Products[0].ID, result.Products[1].ID}
		assert.Contains(t, ids, cheapID)
		assert.Contains(t, ids, midID)
	})

	t.Run("in stock only", func(t *testing.T) {
		inStock := true
		result, err := svc.ListProducts(ctx, ListProductsInput{
			Filters: ProductListFilters{InStock: &inStock, Query: marker},
		})
		require.NoError(t, err)
		require.Len(t, result.Products, 1)
		assert.Equal(t, cheapID, result.Products[0].ID)
	})

	t.Run("name search", func(t *testing.T) {
		result, err := svc.ListProducts(ctx, ListProductsInput{
			Filters: ProductListFilters{Query: marker + " AGED"},
		})
		require.NoError(t, err)
		require.Len(t, result.Products, 1)
		assert.Equal(t, midID, result.Products[0].ID)
	})

	t.Run("inactive hidden from public listing", func(t *testing.T) {
		result, err := svc.ListProducts(ctx, ListProductsInput{
			Filters: ProductListFilters{Query: marker},
		})
		require.NoError(t, err)
		for _, p := range result.Products {
			assert.NotEqual(t, hiddenID, p.ID)
		}

		withInactive, err := svc.ListProducts(ctx, ListProductsInput{
			Filters:         ProductListFilters{Query: marker},
			IncludeInactive: true,
		})
		require.NoError(t, err)
		assert.Len(t, withInactive.Products, 3)
	})

	t.Run("keyset pagination", func(t *testing.T) {
		page, err := svc.ListProducts(ctx, ListProductsInput{
			Filters:         ProductListFilters{Query: marker},
			Pagination:      pagination.Params{Limit: 2},
			IncludeInactive: true,
		})
		require.NoError(t, err)
		require.Len(t, page.Products, 2)
		assert.Equal(t, hiddenID, page.Products[0].ID)
		assert.Equal(t, midID, page.Products[1].ID)
		require.NotEmpty(t, page.NextCursor)

		rest, err := svc.ListProducts(ctx, ListProductsInput{
			Filters:         ProductListFilters{Query: marker},
			Pagination:      pagination.Params{Limit: 2, Cursor: page.NextCursor},
			IncludeInactive: true,
		})
		require.NoError(t, err)
		require.Len(t, rest.Products, 1)
		assert.Equal(t, cheapID, rest.Products[0].ID)
		assert.Empty(t, rest.NextCursor)
	})
}
