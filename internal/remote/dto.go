package remote

import "time"

// Prices are integral rial amounts, as served by the API.

type ProductDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Stock       int     `json:"stock"`
	Rating      float32 `json:"rating"`
	CategoryID  string  `json:"categoryId"`
	ImageURL    string  `json:"imageUrl"`
}

type CategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CartItemDTO struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type CartDTO struct {
	Items        []CartItemDTO `json:"items"`
	DiscountCode string        `json:"discountCode"`
	Subtotal     int64         `json:"subtotal"`
	Discount     int64         `json:"discount"`
	Total        int64         `json:"total"`
}

type OrderItemDTO struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type OrderDTO struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Items     []OrderItemDTO `json:"items"`
	Subtotal  int64          `json:"subtotal"`
	Discount  int64          `json:"discount"`
	Total     int64          `json:"total"`
	CreatedAt time.Time      `json:"createdAt"`
}

type UserDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type AddressDTO struct {
	ID         string `json:"id"`
	Province   string `json:"province"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Line       string `json:"line"`
	Recipient  string `json:"recipient"`
}

type TokensDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type FavoriteDTO struct {
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}
