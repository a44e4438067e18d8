package cart

import "time"

type Item struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Cart struct {
	Items        []Item    `json:"items"`
	DiscountCode string    `json:"discountCode,omitempty"`
	Subtotal     int64     `json:"subtotal"`
	Discount     int64     `json:"discount"`
	Total        int64     `json:"total"`
	FetchedAt    time.Time `json:"fetchedAt"`
}
