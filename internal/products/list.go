package products

import (
	"github.com/shopspring/decimal"

	"github.com/stackmesh/storefront-backend/pkg/enums"
	"github.com/stackmesh/storefront-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Category *enums.ProductCategory `json:"category,omitempty"`
	PriceMin *decimal.Decimal       `json:"price_min,omitempty"`
	PriceMax *decimal.Decimal       `json:"price_max,omitempty"`
	InStock  *bool                  `json:"in_stock,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
	Query    string                 `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters         ProductListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}
