package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/stackmesh/storefront-backend/pkg/enums"
)

// Product represents a catalog listing. Price is nullable so listings can
// be staged before pricing is finalized; unpriced products cannot be added
// to a cart.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                `gorm:"column:name;not null"`
	Description *string               `gorm:"column:description"`
	Category    enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	Price       *decimal.Decimal      `gorm:"column:price;type:numeric(10,2)"`
	Stock       int                   `gorm:"column:stock;not null;default:0"`
	Tags        pq.StringArray        `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	IsActive    bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
