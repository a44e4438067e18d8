package catalog

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Rating      float32   `json:"rating"`
	CategoryID  string    `json:"categoryId"`
	ImageURL    string    `json:"imageUrl"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FetchedAt time.Time `json:"fetchedAt"`
}
