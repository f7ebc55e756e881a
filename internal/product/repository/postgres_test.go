package repository

import (
	"testing"

	"github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/stretchr/testify/assert"
)

func TestBuildProductQuery(t *testing.T) {
	query, args := buildProductQuery(&dto.ProductFilters{})
	assert.Equal(t, "SELECT * FROM products ORDER BY name ASC", query)
	assert.Empty(t, args)

	no := false
	query, args = buildProductQuery(&dto.ProductFilters{Category: "Pork", SearchQuery: "belly", Emergency: &no})
	assert.Equal(t, "SELECT * FROM products WHERE category = :category AND name ILIKE :search AND is_emergency = :is_emergency ORDER BY name ASC", query)
	assert.Equal(t, "%belly%", args["search"])
	assert.Equal(t, false, args["is_emergency"])
}
