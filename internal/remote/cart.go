package remote

import (
	"context"
	"net/http"
)

type CartClient struct{ c *Client }

func NewCartClient(c *Client) *CartClient { return &CartClient{c: c} }

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type discountRequest struct {
	Code string `json:"code"`
}

func (cc *CartClient) GetCart(ctx context.Context) (CartDTO, error) {
	var out CartDTO
	err := cc.c.DoJSON(ctx, http.MethodGet, "cart", nil, nil, &out)
	return out, err
}

// Mutations return the server's updated cart so the local copy can mirror it.

func (cc *CartClient) AddItem(ctx context.Context, req AddItemRequest) (CartDTO, error) {
	var out CartDTO
	err := cc.c.DoJSON(ctx, http.MethodPost, "cart/items", nil, req, &out)
	return out, err
}

func (cc *CartClient) UpdateItem(ctx context.Context, itemID string, quantity int) (CartDTO, error) {
	var out CartDTO
	err := cc.c.DoJSON(ctx, http.MethodPut, "cart/items/"+itemID, nil, updateItemRequest{Quantity: quantity}, &out)
	return out, err
}

func (cc *CartClient) RemoveItem(ctx context.Context, itemID string) (CartDTO, error) {
	var out CartDTO
	err := cc.c.DoJSON(ctx, http.MethodDelete, "cart/items/"+itemID, nil, nil, &out)
	return out, err
}

func (cc *CartClient) ApplyDiscount(ctx context.Context, code string) (CartDTO, error) {
	var out CartDTO
	err := cc.c.DoJSON(ctx, http.MethodPost, "cart/discount", nil, discountRequest{Code: code}, &out)
	return out, err
}

func (cc *CartClient) Checkout(ctx context.Context) (OrderDTO, error) {
	var out OrderDTO
	err := cc.c.DoJSON(ctx, http.MethodPost, "cart/checkout", nil, nil, &out)
	return out, err
}
