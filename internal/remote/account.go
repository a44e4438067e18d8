package remote

import (
	"context"
	"net/http"
)

type AccountClient struct{ c *Client }

func NewAccountClient(c *Client) *AccountClient { return &AccountClient{c: c} }

type LoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (ac *AccountClient) Login(ctx context.Context, phone, code string) (TokensDTO, error) {
	var out TokensDTO
	err := ac.c.DoJSON(ctx, http.MethodPost, "auth/login", nil, LoginRequest{Phone: phone, Code: code}, &out)
	return out, err
}

func (ac *AccountClient) GetProfile(ctx context.Context) (UserDTO, error) {
	var out UserDTO
	err := ac.c.DoJSON(ctx, http.MethodGet, "profile", nil, nil, &out)
	return out, err
}

func (ac *AccountClient) UpdateProfile(ctx context.Context, user UserDTO) (UserDTO, error) {
	var out UserDTO
	err := ac.c.DoJSON(ctx, http.MethodPut, "profile", nil, user, &out)
	return out, err
}

func (ac *AccountClient) ListAddresses(ctx context.Context) ([]AddressDTO, error) {
	var out []AddressDTO
	err := ac.c.DoJSON(ctx, http.MethodGet, "addresses", nil, nil, &out)
	return out, err
}

func (ac *AccountClient) CreateAddress(ctx context.Context, addr AddressDTO) (AddressDTO, error) {
	var out AddressDTO
	err := ac.c.DoJSON(ctx, http.MethodPost, "addresses", nil, addr, &out)
	return out, err
}

func (ac *AccountClient) UpdateAddress(ctx context.Context, addr AddressDTO) (AddressDTO, error) {
	var out AddressDTO
	err := ac.c.DoJSON(ctx, http.MethodPut, "addresses/"+addr.ID, nil, addr, &out)
	return out, err
}

func (ac *AccountClient) DeleteAddress(ctx context.Context, addressID string) error {
	return ac.c.DoJSON(ctx, http.MethodDelete, "addresses/"+addressID, nil, nil, nil)
}
