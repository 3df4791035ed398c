package enums

import "fmt"

// ProductCategory classifies catalog listings.
type ProductCategory string

const (
	ProductCategoryTShirts     ProductCategory = "T-Shirts"
	ProductCategoryHoodies     ProductCategory = "Hoodies"
	ProductCategoryJeans       ProductCategory = "Jeans"
	ProductCategoryShoes       ProductCategory = "Shoes"
	ProductCategoryAccessories ProductCategory = "Accessories"
)

var validProductCategories = []ProductCategory{
	ProductCategoryTShirts,
	ProductCategoryHoodies,
	ProductCategoryJeans,
	ProductCategoryShoes,
	ProductCategoryAccessories,
}

// String implements fmt.Stringer.
func (p ProductCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresSizing reports whether listings in this category must carry size variants.
func (p ProductCategory) RequiresSizing() bool {
	return p == ProductCategoryTShirts
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
