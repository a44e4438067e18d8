package account

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type Address struct {
	ID         string `json:"id"`
	Province   string `json:"province"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Line       string `json:"line"`
	Recipient  string `json:"recipient"`
}
