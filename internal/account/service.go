package account

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/auth"
	"github.com/noghresod/sync-service-go/internal/metrics"
	"github.com/noghresod/sync-service-go/internal/ratelimit"
	"github.com/noghresod/sync-service-go/internal/remote"
	"github.com/noghresod/sync-service-go/internal/resource"
)

// API is the remote account surface.
type API interface {
	Login(ctx context.Context, phone, code string) (remote.TokensDTO, error)
	GetProfile(ctx context.Context) (remote.UserDTO, error)
	UpdateProfile(ctx context.Context, user remote.UserDTO) (remote.UserDTO, error)
	ListAddresses(ctx context.Context) ([]remote.AddressDTO, error)
	CreateAddress(ctx context.Context, addr remote.AddressDTO) (remote.AddressDTO, error)
	UpdateAddress(ctx context.Context, addr remote.AddressDTO) (remote.AddressDTO, error)
	DeleteAddress(ctx context.Context, addressID string) error
}

var iranMobile = regexp.MustCompile(`^09\d{9}$`)

type Service struct {
	repo     Repository
	api      API
	tokens   auth.Store
	logins   *ratelimit.Window
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
	log      *logrus.Entry

	profile   resource.Group[*User]
	addresses resource.Group[[]Address]
}

func NewService(repo Repository, api API, tokens auth.Store, logins *ratelimit.Window, ttl time.Duration, log *logrus.Entry) *Service {
	return &Service{
		repo:     repo,
		api:      api,
		tokens:   tokens,
		logins:   logins,
		ttl:      ttl,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
	}
}

type LoginInput struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// Login verifies the OTP upstream and stores the returned tokens. Attempts
// are bounded per phone number; a rejected attempt never reaches the network.
func (s *Service) Login(ctx context.Context, in LoginInput) error {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validate.Struct(in); err != nil {
		return loginValidationError(err)
	}
	if !iranMobile.MatchString(in.Phone) {
		return fieldError("phone", "شماره موبایل معتبر نیست")
	}

	if !s.logins.CanAttempt("login:" + in.Phone) {
		return fieldError("phone", "تعداد تلاش‌های ورود بیش از حد مجاز است. کمی بعد دوباره تلاش کنید")
	}

	dto, err := s.api.Login(ctx, in.Phone, in.Code)
	if err != nil {
		return err
	}

	if err := s.tokens.Save(ctx, auth.Tokens{
		AccessToken:  dto.AccessToken,
		RefreshToken: dto.RefreshToken,
	}); err != nil {
		return err
	}

	s.profile.Forget("profile")
	s.addresses.Forget("addresses")
	s.log.Info("login succeeded, tokens stored")
	return nil
}

// Logout drops the tokens and the profile mirror. Purely local.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.tokens.Invalidate(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx); err != nil {
		return err
	}
	s.profile.Forget("profile")
	s.addresses.Forget("addresses")
	return nil
}

func (s *Service) Profile(ctx context.Context, force bool) resource.Result[*User] {
	res := s.profile.Get(ctx, "profile", resource.Options[*User]{
		Query: func(ctx context.Context) (*User, error) {
			return s.repo.GetUser(ctx)
		},
		Fetch: func(ctx context.Context) (*User, error) {
			dto, err := s.api.GetProfile(ctx)
			if err != nil {
				return nil, err
			}
			u := userFromDTO(dto)
			return &u, nil
		},
		Save: func(ctx context.Context, u *User) error {
			return s.repo.SaveUser(ctx, u)
		},
		ShouldFetch: func(local *User) bool {
			return force || local == nil || local.FetchedAt.Before(s.now().Add(-s.ttl))
		},
		IsEmpty: func(local *User) bool { return local == nil },
	})
	s.observe("profile", res.Outcome(), res.Err)
	return res
}

// UpdateProfile pushes the edit upstream and mirrors the server's response.
func (s *Service) UpdateProfile(ctx context.Context, u User) (*User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return nil, fieldError("name", "نام را وارد کنید")
	}

	dto, err := s.api.UpdateProfile(ctx, remote.UserDTO{
		ID: u.ID, Name: u.Name, Phone: u.Phone, Email: u.Email,
	})
	if err != nil {
		return nil, err
	}
	saved := userFromDTO(dto)
	if err := s.repo.SaveUser(ctx, &saved); err != nil {
		return nil, err
	}
	s.profile.Forget("profile")
	return s.repo.GetUser(ctx)
}

func (s *Service) Addresses(ctx context.Context, force bool) resource.Result[[]Address] {
	// Addresses fetched before the profile sync cannot be mirrored (the
	// schema ties them to the user row); they are still served from here so
	// the read never fabricates an empty success.
	var unmirrored []Address
	res := s.addresses.Get(ctx, "addresses", resource.Options[[]Address]{
		Query: func(ctx context.Context) ([]Address, error) {
			if unmirrored != nil {
				return unmirrored, nil
			}
			return s.repo.ListAddresses(ctx)
		},
		Fetch: func(ctx context.Context) ([]Address, error) {
			dtos, err := s.api.ListAddresses(ctx)
			if err != nil {
				return nil, err
			}
			return addressesFromDTOs(dtos), nil
		},
		Save: func(ctx context.Context, addrs []Address) error {
			err := s.repo.ReplaceAddresses(ctx, addrs)
			if errors.Is(err, ErrNoProfile) {
				s.log.Warn("skipping address mirror, no profile synced yet")
				unmirrored = addrs
				return nil
			}
			return err
		},
		ShouldFetch: func(local []Address) bool { return force || len(local) == 0 },
		IsEmpty:     func(local []Address) bool { return len(local) == 0 },
	})
	s.observe("addresses", res.Outcome(), res.Err)
	return res
}

type AddressInput struct {
	ID         string `json:"id"`
	Province   string `json:"province" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required,numeric,len=10"`
	Line       string `json:"line" validate:"required"`
	Recipient  string `json:"recipient" validate:"required"`
}

func (s *Service) CreateAddress(ctx context.Context, in AddressInput) (*Address, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, addressValidationError(err)
	}

	dto, err := s.api.CreateAddress(ctx, addressDTO(in))
	if err != nil {
		return nil, err
	}
	return s.mirrorAddress(ctx, dto)
}

func (s *Service) UpdateAddress(ctx context.Context, in AddressInput) (*Address, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fieldError("id", "شناسه نشانی معتبر نیست")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, addressValidationError(err)
	}

	dto, err := s.api.UpdateAddress(ctx, addressDTO(in))
	if err != nil {
		return nil, err
	}
	return s.mirrorAddress(ctx, dto)
}

func (s *Service) DeleteAddress(ctx context.Context, addressID string) error {
	if strings.TrimSpace(addressID) == "" {
		return fieldError("id", "شناسه نشانی معتبر نیست")
	}
	if err := s.api.DeleteAddress(ctx, addressID); err != nil {
		return err
	}
	s.addresses.Forget("addresses")
	// The delete already succeeded upstream; a failed follow-up refetch that
	// still served the mirror must not be reported as a failure.
	if res := s.Addresses(ctx, true); res.Status == resource.StatusError {
		return res.Err
	}
	return nil
}

func (s *Service) mirrorAddress(ctx context.Context, dto remote.AddressDTO) (*Address, error) {
	addr := addressFromDTO(dto)
	s.addresses.Forget("addresses")
	res := s.Addresses(ctx, true)
	if res.Status == resource.StatusError {
		return nil, res.Err
	}
	return &addr, nil
}

func (s *Service) observe(name, outcome string, err error) {
	metrics.ObserveLoad(name, outcome)
	if outcome == "fallback" {
		s.log.WithError(err).WithField("resource", name).Warn("serving cached data after failed refresh")
	}
}

func userFromDTO(dto remote.UserDTO) User {
	return User{ID: dto.ID, Name: dto.Name, Phone: dto.Phone, Email: dto.Email}
}

func addressFromDTO(dto remote.AddressDTO) Address {
	return Address{
		ID:         dto.ID,
		Province:   dto.Province,
		City:       dto.City,
		PostalCode: dto.PostalCode,
		Line:       dto.Line,
		Recipient:  dto.Recipient,
	}
}

func addressesFromDTOs(dtos []remote.AddressDTO) []Address {
	out := make([]Address, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, addressFromDTO(dto))
	}
	return out
}

func addressDTO(in AddressInput) remote.AddressDTO {
	return remote.AddressDTO{
		ID:         in.ID,
		Province:   in.Province,
		City:       in.City,
		PostalCode: in.PostalCode,
		Line:       in.Line,
		Recipient:  in.Recipient,
	}
}

func fieldError(field, message string) *apperr.Error {
	e := apperr.New(apperr.Validation, "invalid input")
	e.Fields = map[string]string{field: message}
	return e
}

func loginValidationError(err error) *apperr.Error {
	return mapValidationError(err, map[string]string{
		"Phone": "شماره موبایل را وارد کنید",
		"Code":  "کد تأیید باید ۶ رقم باشد",
	})
}

func addressValidationError(err error) *apperr.Error {
	return mapValidationError(err, map[string]string{
		"Province":   "استان را وارد کنید",
		"City":       "شهر را وارد کنید",
		"PostalCode": "کد پستی باید ۱۰ رقم باشد",
		"Line":       "نشانی را وارد کنید",
		"Recipient":  "نام گیرنده را وارد کنید",
	})
}

func mapValidationError(err error, messages map[string]string) *apperr.Error {
	e := apperr.New(apperr.Validation, "invalid input")
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		e.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			msg, ok := messages[fe.Field()]
			if !ok {
				msg = "اطلاعات واردشده معتبر نیست"
			}
			e.Fields[fe.Field()] = msg
		}
	}
	return e
}
