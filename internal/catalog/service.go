package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/noghresod/sync-service-go/internal/metrics"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

// API is the remote catalog surface the service syncs from.
type API interface {
	ListProducts(ctx context.Context, categoryID string) ([]remote.ProductDTO, error)
	GetProduct(ctx context.Context, productID string) (remote.ProductDTO, error)
	ListCategories(ctx context.Context) ([]remote.CategoryDTO, error)
}

// Service loads catalog data cache-first. Product lists and categories are
// read-mostly: a fetched_at older than the TTL triggers a refetch, and a
// failed refetch falls back to whatever is cached.
type Service struct {
	repo    Repository
	api     API
	ttl     time.Duration
	retries int
	now     func() time.Time
	log     *logrus.Entry

	// Bulk catalog sync goes through a breaker so a flapping upstream is not
	// hammered by every screen refresh.
	listBreaker *gobreaker.CircuitBreaker[[]remote.ProductDTO]

	products   resource.Group[[]Product]
	detail     resource.Group[*Product]
	categories resource.Group[[]Category]
}

func NewService(repo Repository, api API, ttl time.Duration, retries int, log *logrus.Entry) *Service {
	return &Service{
		repo:        repo,
		api:         api,
		ttl:         ttl,
		retries:     retries,
		now:         time.Now,
		log:         log,
		listBreaker: remote.NewBreaker[[]remote.ProductDTO]("catalog-products"),
	}
}

func (s *Service) Products(ctx context.Context, categoryID string, force bool) resource.Result[[]Product] {
	res := s.products.Get(ctx, "products:"+categoryID, resource.Options[[]Product]{
		Query: func(ctx context.Context) ([]Product, error) {
			return s.repo.ListByCategory(ctx, categoryID)
		},
		Fetch: func(ctx context.Context) ([]Product, error) {
			dtos, err := remote.WithRetry(ctx, s.retries, 0, func(ctx context.Context) ([]remote.ProductDTO, error) {
				return s.listBreaker.Execute(func() ([]remote.ProductDTO, error) {
					return s.api.ListProducts(ctx, categoryID)
				})
			})
			if err != nil {
				return nil, err
			}
			return productsFromDTOs(dtos), nil
		},
		Save: func(ctx context.Context, products []Product) error {
			return s.repo.UpsertProducts(ctx, products)
		},
		ShouldFetch: func(local []Product) bool { return force || s.productsStale(local) },
		IsEmpty:     func(local []Product) bool { return len(local) == 0 },
	})
	s.observe("products", res.Outcome(), res.Err)
	return res
}

func (s *Service) Product(ctx context.Context, productID string, force bool) resource.Result[*Product] {
	res := s.detail.Get(ctx, "product:"+productID, resource.Options[*Product]{
		Query: func(ctx context.Context) (*Product, error) {
			p, err := s.repo.Get(ctx, productID)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return p, err
		},
		Fetch: func(ctx context.Context) (*Product, error) {
			dto, err := s.api.GetProduct(ctx, productID)
			if err != nil {
				return nil, err
			}
			p := productFromDTO(dto)
			return &p, nil
		},
		Save: func(ctx context.Context, p *Product) error {
			if p == nil {
				return nil
			}
			return s.repo.UpsertProducts(ctx, []Product{*p})
		},
		ShouldFetch: func(local *Product) bool {
			return force || local == nil || local.FetchedAt.Before(s.now().Add(-s.ttl))
		},
		IsEmpty: func(local *Product) bool { return local == nil },
	})
	s.observe("product", res.Outcome(), res.Err)
	return res
}

func (s *Service) Categories(ctx context.Context, force bool) resource.Result[[]Category] {
	res := s.categories.Get(ctx, "categories", resource.Options[[]Category]{
		Query: s.repo.ListCategories,
		Fetch: func(ctx context.Context) ([]Category, error) {
			dtos, err := s.api.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			categories := make([]Category, 0, len(dtos))
			for _, dto := range dtos {
				categories = append(categories, Category{ID: dto.ID, Name: dto.Name})
			}
			return categories, nil
		},
		Save:        s.repo.UpsertCategories,
		ShouldFetch: func(local []Category) bool { return force || s.categoriesStale(local) },
		IsEmpty:     func(local []Category) bool { return len(local) == 0 },
	})
	s.observe("categories", res.Outcome(), res.Err)
	return res
}

func (s *Service) productsStale(local []Product) bool {
	if len(local) == 0 {
		return true
	}
	cutoff := s.now().Add(-s.ttl)
	for _, p := range local {
		if p.FetchedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) categoriesStale(local []Category) bool {
	if len(local) == 0 {
		return true
	}
	cutoff := s.now().Add(-s.ttl)
	for _, c := range local {
		if c.FetchedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) observe(name, outcome string, err error) {
	metrics.ObserveLoad(name, outcome)
	if outcome == "fallback" {
		s.log.WithError(err).WithField("resource", name).Warn("serving cached data after failed refetch")
	}
}

func productFromDTO(dto remote.ProductDTO) Product {
	return Product{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Price:       dto.Price,
		Stock:       dto.Stock,
		Rating:      dto.Rating,
		CategoryID:  dto.CategoryID,
		ImageURL:    dto.ImageURL,
	}
}

func productsFromDTOs(dtos []remote.ProductDTO) []Product {
	products := make([]Product, 0, len(dtos))
	for _, dto := range dtos {
		products = append(products, productFromDTO(dto))
	}
	return products
}
