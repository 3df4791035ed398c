package types

import "strings"

// Address is the shipping/billing snapshot stored on an order. It is kept as
// jsonb so the captured value survives later profile edits.
type Address struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zip_code" validate:"required"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// IsZero reports whether no field was provided.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.FirstName) == "" &&
		strings.TrimSpace(a.LastName) == "" &&
		strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.ZipCode) == ""
}
