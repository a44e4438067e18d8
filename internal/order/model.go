package order

import "time"

type Item struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type Order struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Items     []Item    `json:"items"`
	Subtotal  int64     `json:"subtotal"`
	Discount  int64     `json:"discount"`
	Total     int64     `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
	FetchedAt time.Time `json:"fetchedAt"`
}
