package inventory

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// Item is an inventory record as returned by the API.
type Item struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// Value is price times quantity
func (i Item) Value() float64 {
	return i.Price * float64(i.Quantity)
}

// ItemInput is the create payload. Server assigned fields are left out.
type ItemInput struct {
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (i ItemInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required),
		validation.Field(&i.Price, validation.Min(0.0)),
		validation.Field(&i.Quantity, validation.Min(0)),
	)
}

// ItemPatch is a partial update. Nil fields are not sent.
type ItemPatch struct {
	ItemID   string   `json:"itemId"`
	Name     *string  `json:"name,omitempty"`
	Category *string  `json:"category,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Quantity *int     `json:"quantity,omitempty"`
}

func (p ItemPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ItemID, validation.Required),
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.Quantity, validation.Min(0)),
	)
}

// DeleteResult is the confirmation returned by a delete
type DeleteResult struct {
	Message string `json:"message,omitempty"`
	ItemID  string `json:"itemId,omitempty"`
}
