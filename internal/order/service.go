package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/metrics"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

// API is the remote order surface.
type API interface {
	ListOrders(ctx context.Context) ([]remote.OrderDTO, error)
	GetOrder(ctx context.Context, orderID string) (remote.OrderDTO, error)
}

// Service mirrors the server's orders. Checkout snapshots come in through
// RecordCheckout; later status changes arrive either via a forced refetch or
// through ApplyStatus when the broker delivers one.
type Service struct {
	repo Repository
	api  API
	ttl  time.Duration
	now  func() time.Time
	log  *logrus.Entry

	list   resource.Group[[]Order]
	detail resource.Group[*Order]
}

func NewService(repo Repository, api API, ttl time.Duration, log *logrus.Entry) *Service {
	return &Service{
		repo: repo,
		api:  api,
		ttl:  ttl,
		now:  time.Now,
		log:  log,
	}
}

func (s *Service) Orders(ctx context.Context, force bool) resource.Result[[]Order] {
	res := s.list.Get(ctx, "orders", resource.Options[[]Order]{
		Query: s.repo.List,
		Fetch: func(ctx context.Context) ([]Order, error) {
			dtos, err := s.api.ListOrders(ctx)
			if err != nil {
				return nil, err
			}
			return ordersFromDTOs(dtos)
		},
		Save: func(ctx context.Context, orders []Order) error {
			return s.repo.SaveAll(ctx, orders)
		},
		ShouldFetch: func(local []Order) bool { return force || s.listStale(local) },
		IsEmpty:     func(local []Order) bool { return len(local) == 0 },
	})
	s.observe("orders", res.Outcome(), res.Err)
	return res
}

func (s *Service) Order(ctx context.Context, orderID string, force bool) resource.Result[*Order] {
	res := s.detail.Get(ctx, "order:"+orderID, resource.Options[*Order]{
		Query: func(ctx context.Context) (*Order, error) {
			o, err := s.repo.GetByID(ctx, orderID)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return o, err
		},
		Fetch: func(ctx context.Context) (*Order, error) {
			dto, err := s.api.GetOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			o, err := orderFromDTO(dto)
			if err != nil {
				return nil, err
			}
			return &o, nil
		},
		Save: func(ctx context.Context, o *Order) error {
			if o == nil {
				return nil
			}
			return s.repo.Save(ctx, o)
		},
		ShouldFetch: func(local *Order) bool {
			if force || local == nil {
				return true
			}
			// Terminal orders never change again; the mirror is final.
			if local.Status.Terminal() {
				return false
			}
			return local.FetchedAt.Before(s.now().Add(-s.ttl))
		},
		IsEmpty: func(local *Order) bool { return local == nil },
	})
	s.observe("order", res.Outcome(), res.Err)
	return res
}

// RecordCheckout persists the order snapshot a checkout produced. It is the
// cart service's OrderRecorder.
func (s *Service) RecordCheckout(ctx context.Context, dto remote.OrderDTO) error {
	o, err := orderFromDTO(dto)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, &o); err != nil {
		return err
	}
	s.detail.Forget("order:" + o.ID)
	s.list.Forget("orders")
	s.log.WithField("order_id", o.ID).Info("recorded checkout order")
	return nil
}

// ApplyStatus applies a server-driven status change to the mirrored order.
// Illegal transitions are rejected; the caller decides whether to requeue.
func (s *Service) ApplyStatus(ctx context.Context, orderID string, next Status) error {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(next) {
		return apperr.New(apperr.Validation,
			fmt.Sprintf("order %s cannot move from %s to %s", orderID, current.Status, next))
	}
	if err := s.repo.UpdateStatus(ctx, orderID, next); err != nil {
		return err
	}
	s.detail.Forget("order:" + orderID)
	s.list.Forget("orders")
	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     current.Status,
		"to":       next,
	}).Info("applied order status update")
	return nil
}

func (s *Service) listStale(local []Order) bool {
	if len(local) == 0 {
		return true
	}
	cutoff := s.now().Add(-s.ttl)
	for i := range local {
		if local[i].FetchedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) observe(name, outcome string, err error) {
	metrics.ObserveLoad(name, outcome)
	if outcome == "fallback" {
		s.log.WithError(err).WithField("resource", name).Warn("serving cached data after failed refresh")
	}
}

func ordersFromDTOs(dtos []remote.OrderDTO) ([]Order, error) {
	out := make([]Order, 0, len(dtos))
	for _, dto := range dtos {
		o, err := orderFromDTO(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func orderFromDTO(dto remote.OrderDTO) (Order, error) {
	status, err := ParseStatus(dto.Status)
	if err != nil {
		return Order{}, apperr.Wrap(apperr.Unknown, err)
	}
	o := Order{
		ID:        dto.ID,
		Status:    status,
		Subtotal:  dto.Subtotal,
		Discount:  dto.Discount,
		Total:     dto.Total,
		CreatedAt: dto.CreatedAt,
	}
	for _, it := range dto.Items {
		o.Items = append(o.Items, Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return o, nil
}
