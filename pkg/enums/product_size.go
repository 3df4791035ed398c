package enums

import "fmt"

// ProductSize is a stock-keeping size for a sized listing.
type ProductSize string

const (
	ProductSizeXS      ProductSize = "XS"
	ProductSizeS       ProductSize = "S"
	ProductSizeM       ProductSize = "M"
	ProductSizeL       ProductSize = "L"
	ProductSizeXL      ProductSize = "XL"
	ProductSizeXXL     ProductSize = "XXL"
	ProductSize28      ProductSize = "28"
	ProductSize30      ProductSize = "30"
	ProductSize32      ProductSize = "32"
	ProductSize34      ProductSize = "34"
	ProductSize36      ProductSize = "36"
	ProductSize38      ProductSize = "38"
	ProductSize40      ProductSize = "40"
	ProductSize42      ProductSize = "42"
	ProductSizeOneSize ProductSize = "ONE_SIZE"
)

var validProductSizes = []ProductSize{
	ProductSizeXS,
	ProductSizeS,
	ProductSizeM,
	ProductSizeL,
	ProductSizeXL,
	ProductSizeXXL,
	ProductSize28,
	ProductSize30,
	ProductSize32,
	ProductSize34,
	ProductSize36,
	ProductSize38,
	ProductSize40,
	ProductSize42,
	ProductSizeOneSize,
}

// String implements fmt.Stringer.
func (p ProductSize) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductSize.
func (p ProductSize) IsValid() bool {
	for _, candidate := range validProductSizes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductSize converts raw input into a ProductSize.
func ParseProductSize(value string) (ProductSize, error) {
	for _, candidate := range validProductSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product size %q", value)
}
