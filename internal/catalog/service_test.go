package catalog

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

type fakeRepo struct {
	products   map[string]Product
	categories []Category

	upserts int
}

func newFakeRepo(products ...Product) *fakeRepo {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeRepo{products: m}
}

func (f *fakeRepo) ListByCategory(_ context.Context, categoryID string) ([]Product, error) {
	var out []Product
	for _, p := range f.products {
		if categoryID == "" || p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, productID string) (*Product, error) {
	if p, ok := f.products[productID]; ok {
		return &p, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) UpsertProducts(_ context.Context, products []Product) error {
	f.upserts++
	for _, p := range products {
		p.FetchedAt = time.Now()
		f.products[p.ID] = p
	}
	return nil
}

func (f *fakeRepo) ListCategories(context.Context) ([]Category, error) {
	return f.categories, nil
}

func (f *fakeRepo) UpsertCategories(_ context.Context, categories []Category) error {
	for i := range categories {
		categories[i].FetchedAt = time.Now()
	}
	f.categories = categories
	return nil
}

type fakeAPI struct {
	products []remote.ProductDTO
	err      error
	calls    int
}

func (f *fakeAPI) ListProducts(context.Context, string) ([]remote.ProductDTO, error) {
	f.calls++
	return f.products, f.err
}

func (f *fakeAPI) GetProduct(_ context.Context, id string) (remote.ProductDTO, error) {
	f.calls++
	if f.err != nil {
		return remote.ProductDTO{}, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return remote.ProductDTO{}, apperr.New(apperr.NotFound, "no such product")
}

func (f *fakeAPI) ListCategories(context.Context) ([]remote.CategoryDTO, error) {
	f.calls++
	return nil, f.err
}

func newTestService(repo Repository, api API, ttl time.Duration) *Service {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewService(repo, api, ttl, 0, l.WithField("component", "catalog"))
}

func TestProductsFreshCacheSkipsNetwork(t *testing.T) {
	repo := newFakeRepo(Product{ID: "p1", CategoryID: "rings", FetchedAt: time.Now()})
	api := &fakeAPI{}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Products(context.Background(), "rings", false)

	if res.Status != resource.StatusSuccess || res.Fetched {
		t.Fatalf("expected fresh cache hit, got %+v", res)
	}
	if api.calls != 0 {
		t.Fatalf("network hit %d times for fresh cache", api.calls)
	}
}

func TestProductsStaleCacheRefetches(t *testing.T) {
	repo := newFakeRepo(Product{ID: "p1", CategoryID: "rings", FetchedAt: time.Now().Add(-2 * time.Hour)})
	api := &fakeAPI{products: []remote.ProductDTO{
		{ID: "p1", Name: "انگشتر نقره", Price: 1250000, CategoryID: "rings"},
		{ID: "p2", Name: "انگشتر فیروزه", Price: 2400000, CategoryID: "rings"},
	}}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Products(context.Background(), "rings", false)

	if res.Status != resource.StatusSuccess || !res.Fetched || res.Stale {
		t.Fatalf("expected refetched success, got %+v", res)
	}
	if len(res.Data) != 2 {
		t.Fatalf("re-read after save returned %d products", len(res.Data))
	}
	if repo.upserts != 1 {
		t.Fatalf("expected one persist, got %d", repo.upserts)
	}
}

func TestProductsFetchFailureServesCache(t *testing.T) {
	repo := newFakeRepo(Product{ID: "p1", CategoryID: "rings", FetchedAt: time.Now().Add(-2 * time.Hour)})
	api := &fakeAPI{err: apperr.New(apperr.Network, "offline")}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Products(context.Background(), "rings", false)

	if res.Status != resource.StatusSuccess || !res.Stale {
		t.Fatalf("cached products must survive a failed refetch: %+v", res)
	}
	if res.Data[0].ID != "p1" {
		t.Fatalf("unexpected fallback data: %+v", res.Data)
	}
}

func TestProductsFetchFailureEmptyCacheIsError(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{err: apperr.New(apperr.Network, "offline")}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Products(context.Background(), "rings", false)

	if res.Status != resource.StatusError {
		t.Fatalf("no cache and no network must be an error: %+v", res)
	}
	if !apperr.IsKind(res.Err, apperr.Network) {
		t.Fatalf("taxonomy kind lost: %v", res.Err)
	}
}

func TestProductsForceBypassesTTL(t *testing.T) {
	repo := newFakeRepo(Product{ID: "p1", CategoryID: "rings", FetchedAt: time.Now()})
	api := &fakeAPI{products: []remote.ProductDTO{{ID: "p1", CategoryID: "rings"}}}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Products(context.Background(), "rings", true)

	if !res.Fetched {
		t.Fatalf("force refresh must hit the network: %+v", res)
	}
	if api.calls != 1 {
		t.Fatalf("network calls: %d", api.calls)
	}
}

func TestProductDetailMissingLocallyFetches(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{products: []remote.ProductDTO{{ID: "p9", Name: "سرویس نقره", Price: 8800000}}}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Product(context.Background(), "p9", false)

	if res.Status != resource.StatusSuccess || res.Data == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Data.Name != "سرویس نقره" {
		t.Fatalf("unexpected product: %+v", res.Data)
	}
	if _, ok := repo.products["p9"]; !ok {
		t.Fatal("fetched product was not persisted")
	}
}

func TestProductDetailNotFoundAnywhere(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{}
	svc := newTestService(repo, api, time.Hour)

	res := svc.Product(context.Background(), "ghost", false)

	if res.Status != resource.StatusError || !apperr.IsKind(res.Err, apperr.NotFound) {
		t.Fatalf("expected not-found error, got %+v", res)
	}
}
