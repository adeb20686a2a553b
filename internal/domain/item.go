package domain

import "time"

type ItemAvailability string

const (
	ItemAvailable ItemAvailability = "available"
	ItemOnLoan    ItemAvailability = "on_loan"
	ItemLost      ItemAvailability = "lost"
	ItemWithdrawn ItemAvailability = "withdrawn"
)

// IsLendable reports whether a new loan may be requested. An item that is
// on loan is still lendable here; the single-unresolved-loan check decides.
func (a ItemAvailability) IsLendable() bool {
	return a == ItemAvailable || a == ItemOnLoan
}

type Item struct {
	ID                   int32            `json:"id"`
	Title                string           `json:"title"`
	Barcode              string           `json:"barcode"`
	Availability         ItemAvailability `json:"availability"`
	ReplacementCostCents int32            `json:"replacement_cost_cents"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
