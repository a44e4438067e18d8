package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/catalog"
	"github.com/noghresod/sync-service-go/internal/remote"
)

type fakeCatalogRepo struct {
	products []catalog.Product
}

func (f *fakeCatalogRepo) ListByCategory(_ context.Context, categoryID string) ([]catalog.Product, error) {
	if categoryID == "" {
		return append([]catalog.Product(nil), f.products...), nil
	}
	var out []catalog.Product
	for _, p := range f.products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalogRepo) Get(_ context.Context, productID string) (*catalog.Product, error) {
	for i := range f.products {
		if f.products[i].ID == productID {
			cp := f.products[i]
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalogRepo) UpsertProducts(_ context.Context, products []catalog.Product) error {
	for _, p := range products {
		p.FetchedAt = time.Now()
		replaced := false
		for i := range f.products {
			if f.products[i].ID == p.ID {
				f.products[i] = p
				replaced = true
			}
		}
		if !replaced {
			f.products = append(f.products, p)
		}
	}
	return nil
}

func (f *fakeCatalogRepo) ListCategories(context.Context) ([]catalog.Category, error) {
	return nil, nil
}

func (f *fakeCatalogRepo) UpsertCategories(context.Context, []catalog.Category) error {
	return nil
}

type fakeCatalogAPI struct {
	products []remote.ProductDTO
	err      error
}

func (f *fakeCatalogAPI) ListProducts(context.Context, string) ([]remote.ProductDTO, error) {
	return f.products, f.err
}

func (f *fakeCatalogAPI) GetProduct(_ context.Context, id string) (remote.ProductDTO, error) {
	if f.err != nil {
		return remote.ProductDTO{}, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return remote.ProductDTO{}, apperr.FromStatus(404, "product not found")
}

func (f *fakeCatalogAPI) ListCategories(context.Context) ([]remote.CategoryDTO, error) {
	return nil, f.err
}

func testRouter(t *testing.T, repo catalog.Repository, api catalog.API) http.Handler {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	entry := l.WithField("component", "test")

	cat := catalog.NewService(repo, api, 15*time.Minute, 0, entry)
	h := NewHandler(cat, nil, nil, nil, nil, entry)
	return NewRouter(h, RouterConfig{
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
		CORSAllowOrigins:   []string{"*"},
	})
}

func TestHealth(t *testing.T) {
	router := testRouter(t, &fakeCatalogRepo{}, &fakeCatalogAPI{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListProductsFreshCache(t *testing.T) {
	repo := &fakeCatalogRepo{products: []catalog.Product{
		{ID: "p1", Name: "انگشتر نقره", Price: 1250000, FetchedAt: time.Now()},
	}}
	router := testRouter(t, repo, &fakeCatalogAPI{err: apperr.New(apperr.Network, "offline")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data  []catalog.Product `json:"data"`
		Stale bool              `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.False(t, body.Stale, "a fresh cache never touches the network")
}

func TestListProductsStaleServedOnFetchFailure(t *testing.T) {
	repo := &fakeCatalogRepo{products: []catalog.Product{
		{ID: "p1", Name: "انگشتر نقره", Price: 1250000, FetchedAt: time.Now().Add(-time.Hour)},
	}}
	router := testRouter(t, repo, &fakeCatalogAPI{err: apperr.New(apperr.Network, "offline")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data  []catalog.Product `json:"data"`
		Stale bool              `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Stale)
}

func TestListProductsErrorWhenNothingCached(t *testing.T) {
	router := testRouter(t, &fakeCatalogRepo{}, &fakeCatalogAPI{err: apperr.New(apperr.Timeout, "slow")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "timeout", body.Error.Kind)
	assert.NotEmpty(t, body.Error.Message)
}

func TestGetProductNotFound(t *testing.T) {
	router := testRouter(t, &fakeCatalogRepo{}, &fakeCatalogAPI{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/unknown", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Kind)
}

func TestStatusForMapping(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.Network:      http.StatusGatewayTimeout,
		apperr.Timeout:      http.StatusGatewayTimeout,
		apperr.Server:       http.StatusBadGateway,
		apperr.Unauthorized: http.StatusUnauthorized,
		apperr.Forbidden:    http.StatusForbidden,
		apperr.NotFound:     http.StatusNotFound,
		apperr.Validation:   http.StatusUnprocessableEntity,
		apperr.Unknown:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), kind.String())
	}
}

func TestWriteErrorIncludesFieldMessages(t *testing.T) {
	e := apperr.New(apperr.Validation, "invalid input")
	e.Fields = map[string]string{"quantity": "تعداد باید بزرگ‌تر از صفر باشد"}

	w := httptest.NewRecorder()
	writeError(w, e)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "تعداد باید بزرگ‌تر از صفر باشد", body.Error.Fields["quantity"])
}

func TestRateLimitRejectsBurst(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		r.RemoteAddr = "10.0.0.1:5000"
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	// A different client has its own bucket.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	r.RemoteAddr = "10.0.0.2:5000"
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := testRouter(t, &fakeCatalogRepo{}, &fakeCatalogAPI{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMalformedBodyRejected(t *testing.T) {
	router := testRouter(t, &fakeCatalogRepo{}, &fakeCatalogAPI{})

	// cart service is nil in this router, but decoding fails first
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader("{broken"))
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
