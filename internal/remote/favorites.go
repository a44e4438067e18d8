package remote

import (
	"context"
	"net/http"
)

type FavoritesClient struct{ c *Client }

func NewFavoritesClient(c *Client) *FavoritesClient { return &FavoritesClient{c: c} }

type addFavoriteRequest struct {
	ProductID string `json:"productId"`
}

func (fc *FavoritesClient) List(ctx context.Context) ([]FavoriteDTO, error) {
	var out []FavoriteDTO
	err := fc.c.DoJSON(ctx, http.MethodGet, "favorites", nil, nil, &out)
	return out, err
}

func (fc *FavoritesClient) Add(ctx context.Context, productID string) error {
	return fc.c.DoJSON(ctx, http.MethodPost, "favorites", nil, addFavoriteRequest{ProductID: productID}, nil)
}

func (fc *FavoritesClient) Remove(ctx context.Context, productID string) error {
	return fc.c.DoJSON(ctx, http.MethodDelete, "favorites/"+productID, nil, nil, nil)
}
