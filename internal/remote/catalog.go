package remote

import (
	"context"
	"net/http"
	"net/url"
)

type CatalogClient struct{ c *Client }

func NewCatalogClient(c *Client) *CatalogClient { return &CatalogClient{c: c} }

func (cc *CatalogClient) ListProducts(ctx context.Context, categoryID string) ([]ProductDTO, error) {
	q := url.Values{}
	if categoryID != "" {
		q.Set("category", categoryID)
	}
	var out []ProductDTO
	err := cc.c.DoJSON(ctx, http.MethodGet, "products", q, nil, &out)
	return out, err
}

func (cc *CatalogClient) GetProduct(ctx context.Context, productID string) (ProductDTO, error) {
	var out ProductDTO
	err := cc.c.DoJSON(ctx, http.MethodGet, "products/"+productID, nil, nil, &out)
	return out, err
}

func (cc *CatalogClient) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	var out []CategoryDTO
	err := cc.c.DoJSON(ctx, http.MethodGet, "categories", nil, nil, &out)
	return out, err
}
