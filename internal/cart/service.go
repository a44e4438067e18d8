package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/metrics"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

// API is the remote cart surface. Mutations return the updated server cart,
// which the service mirrors into the local store.
type API interface {
	GetCart(ctx context.Context) (remote.CartDTO, error)
	AddItem(ctx context.Context, req remote.AddItemRequest) (remote.CartDTO, error)
	UpdateItem(ctx context.Context, itemID string, quantity int) (remote.CartDTO, error)
	RemoveItem(ctx context.Context, itemID string) (remote.CartDTO, error)
	ApplyDiscount(ctx context.Context, code string) (remote.CartDTO, error)
	Checkout(ctx context.Context) (remote.OrderDTO, error)
}

// OrderRecorder persists the order snapshot produced by a checkout.
type OrderRecorder interface {
	RecordCheckout(ctx context.Context, dto remote.OrderDTO) error
}

type Service struct {
	repo     Repository
	api      API
	orders   OrderRecorder
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
	log      *logrus.Entry

	group resource.Group[*Cart]
}

func NewService(repo Repository, api API, orders OrderRecorder, ttl time.Duration, log *logrus.Entry) *Service {
	return &Service{
		repo:     repo,
		api:      api,
		orders:   orders,
		ttl:      ttl,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

type AddItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
}

// Get loads the cart cache-first.
func (s *Service) Get(ctx context.Context, force bool) resource.Result[*Cart] {
	res := s.group.Get(ctx, "cart", resource.Options[*Cart]{
		Query: func(ctx context.Context) (*Cart, error) {
			return s.repo.Get(ctx)
		},
		Fetch: func(ctx context.Context) (*Cart, error) {
			dto, err := s.api.GetCart(ctx)
			if err != nil {
				return nil, err
			}
			c := cartFromDTO(dto)
			return &c, nil
		},
		Save: func(ctx context.Context, c *Cart) error {
			return s.repo.Replace(ctx, c)
		},
		ShouldFetch: func(local *Cart) bool {
			return force || local == nil || local.FetchedAt.Before(s.now().Add(-s.ttl))
		},
		IsEmpty: func(local *Cart) bool { return local == nil },
	})
	metrics.ObserveLoad("cart", res.Outcome())
	return res
}

// AddItem validates locally first; nothing reaches the repository or the
// network when the input is rejected.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*Cart, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	dto, err := s.api.AddItem(ctx, remote.AddItemRequest{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
	})
	if err != nil {
		return nil, err
	}
	return s.mirror(ctx, dto)
}

func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*Cart, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fieldError("itemId", "شناسه قلم سبد خرید معتبر نیست")
	}
	if quantity <= 0 {
		return nil, fieldError("quantity", "تعداد باید بزرگ‌تر از صفر باشد")
	}

	dto, err := s.api.UpdateItem(ctx, itemID, quantity)
	if err != nil {
		return nil, err
	}
	return s.mirror(ctx, dto)
}

func (s *Service) RemoveItem(ctx context.Context, itemID string) (*Cart, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fieldError("itemId", "شناسه قلم سبد خرید معتبر نیست")
	}

	dto, err := s.api.RemoveItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.mirror(ctx, dto)
}

// ApplyDiscount rejects an empty code locally; it is never sent upstream.
func (s *Service) ApplyDiscount(ctx context.Context, code string) (*Cart, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fieldError("code", "کد تخفیف را وارد کنید")
	}

	dto, err := s.api.ApplyDiscount(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.mirror(ctx, dto)
}

// Checkout snapshots the server cart into an order and clears the local
// mirror. The order snapshot is persisted before the cart is cleared so a
// crash in between never loses the order.
func (s *Service) Checkout(ctx context.Context) (remote.OrderDTO, error) {
	dto, err := s.api.Checkout(ctx)
	if err != nil {
		return remote.OrderDTO{}, err
	}

	if err := s.orders.RecordCheckout(ctx, dto); err != nil {
		return remote.OrderDTO{}, err
	}

	if err := s.repo.Clear(ctx); err != nil {
		// The server already emptied the cart; the stale mirror corrects
		// itself on the next sync.
		s.log.WithError(err).Warn("failed to clear local cart after checkout")
	}
	return dto, nil
}

func (s *Service) mirror(ctx context.Context, dto remote.CartDTO) (*Cart, error) {
	c := cartFromDTO(dto)
	if err := s.repo.Replace(ctx, &c); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx)
}

func cartFromDTO(dto remote.CartDTO) Cart {
	c := Cart{
		DiscountCode: dto.DiscountCode,
		Subtotal:     dto.Subtotal,
		Discount:     dto.Discount,
		Total:        dto.Total,
	}
	for _, it := range dto.Items {
		c.Items = append(c.Items, Item{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return c
}

func fieldError(field, message string) *apperr.Error {
	e := apperr.New(apperr.Validation, "invalid input")
	e.Fields = map[string]string{field: message}
	return e
}

func validationError(err error) *apperr.Error {
	e := apperr.New(apperr.Validation, "invalid input")
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		e.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			e.Fields[fe.Field()] = fieldMessage(fe.Field())
		}
	}
	return e
}

func fieldMessage(field string) string {
	switch field {
	case "ProductID":
		return "شناسه کالا معتبر نیست"
	case "Quantity":
		return "تعداد باید بزرگ‌تر از صفر باشد"
	case "UnitPrice":
		return "قیمت واحد معتبر نیست"
	default:
		return "اطلاعات واردشده معتبر نیست"
	}
}
