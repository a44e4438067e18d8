package remote

import (
	"context"
	"net/http"
)

type OrdersClient struct{ c *Client }

func NewOrdersClient(c *Client) *OrdersClient { return &OrdersClient{c: c} }

func (oc *OrdersClient) ListOrders(ctx context.Context) ([]OrderDTO, error) {
	var out []OrderDTO
	err := oc.c.DoJSON(ctx, http.MethodGet, "orders", nil, nil, &out)
	return out, err
}

func (oc *OrdersClient) GetOrder(ctx context.Context, orderID string) (OrderDTO, error) {
	var out OrderDTO
	err := oc.c.DoJSON(ctx, http.MethodGet, "orders/"+orderID, nil, nil, &out)
	return out, err
}
