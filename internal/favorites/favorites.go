package favorites

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/metrics"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

type Favorite struct {
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}

type Repository interface {
	List(ctx context.Context) ([]Favorite, error)
	Replace(ctx context.Context, favs []Favorite) error
	Add(ctx context.Context, productID string, addedAt time.Time) error
	Remove(ctx context.Context, productID string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) List(ctx context.Context) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, added_at FROM favorites ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select favorites: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ProductID, &f.AddedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *repo) Replace(ctx context.Context, favs []Favorite) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM favorites`); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	for _, f := range favs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO favorites (product_id, added_at) VALUES ($1, $2)`,
			f.ProductID, f.AddedAt); err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
	}

	err = tx.Commit()
	return err
}

func (r *repo) Add(ctx context.Context, productID string, addedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (product_id, added_at) VALUES ($1, $2)
		 ON CONFLICT (product_id) DO NOTHING`,
		productID, addedAt)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (r *repo) Remove(ctx context.Context, productID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

// API is the remote favorites surface.
type API interface {
	List(ctx context.Context) ([]remote.FavoriteDTO, error)
	Add(ctx context.Context, productID string) error
	Remove(ctx context.Context, productID string) error
}

// Service mirrors the server's favorites set. Mutations go remote-first and
// apply locally only after the server confirms.
type Service struct {
	repo Repository
	api  API
	now  func() time.Time
	log  *logrus.Entry

	group resource.Group[[]Favorite]
}

func NewService(repo Repository, api API, log *logrus.Entry) *Service {
	return &Service{
		repo: repo,
		api:  api,
		now:  time.Now,
		log:  log,
	}
}

func (s *Service) List(ctx context.Context, force bool) resource.Result[[]Favorite] {
	res := s.group.Get(ctx, "favorites", resource.Options[[]Favorite]{
		Query: s.repo.List,
		Fetch: func(ctx context.Context) ([]Favorite, error) {
			dtos, err := s.api.List(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]Favorite, 0, len(dtos))
			for _, dto := range dtos {
				out = append(out, Favorite{ProductID: dto.ProductID, AddedAt: dto.AddedAt})
			}
			return out, nil
		},
		Save: func(ctx context.Context, favs []Favorite) error {
			return s.repo.Replace(ctx, favs)
		},
		ShouldFetch: func(local []Favorite) bool { return force || len(local) == 0 },
		IsEmpty:     func(local []Favorite) bool { return len(local) == 0 },
	})
	metrics.ObserveLoad("favorites", res.Outcome())
	if res.Outcome() == "fallback" {
		s.log.WithError(res.Err).Warn("serving cached favorites after failed refresh")
	}
	return res
}

func (s *Service) Add(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return invalidProductID()
	}
	if err := s.api.Add(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, productID, s.now()); err != nil {
		return err
	}
	s.group.Forget("favorites")
	return nil
}

func (s *Service) Remove(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return invalidProductID()
	}
	if err := s.api.Remove(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, productID); err != nil {
		return err
	}
	s.group.Forget("favorites")
	return nil
}

func invalidProductID() *apperr.Error {
	e := apperr.New(apperr.Validation, "invalid input")
	e.Fields = map[string]string{"productId": "شناسه کالا معتبر نیست"}
	return e
}
