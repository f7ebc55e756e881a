package dto

type ProductFilters struct {
	Category    string
	SearchQuery string
	Emergency   *bool
}
