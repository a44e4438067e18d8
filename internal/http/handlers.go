package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/account"
	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/cart"
	"github.com/noghresod/sync-service-go/internal/catalog"
	"github.com/noghresod/sync-service-go/internal/favorites"
	"github.com/noghresod/sync-service-go/internal/order"
	"github.com/noghresod/sync-service-go/internal/resource"
)

type Handler struct {
	catalog   *catalog.Service
	cart      *cart.Service
	orders    *order.Service
	account   *account.Service
	favorites *favorites.Service
	log       *logrus.Entry
}

func NewHandler(
	cat *catalog.Service,
	crt *cart.Service,
	ord *order.Service,
	acc *account.Service,
	fav *favorites.Service,
	log *logrus.Entry,
) *Handler {
	return &Handler{
		catalog:   cat,
		cart:      crt,
		orders:    ord,
		account:   acc,
		favorites: fav,
		log:       log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// force=true on any read bypasses the staleness check (pull-to-refresh).
func forceParam(r *http.Request) bool {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return force
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("categoryId")
	writeResult(w, h.catalog.Products(r.Context(), categoryID, forceParam(r)))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	res := h.catalog.Product(r.Context(), chi.URLParam(r, "productId"), forceParam(r))
	if res.Status == resource.StatusSuccess && res.Data == nil {
		writeError(w, apperr.New(apperr.NotFound, "product not found"))
		return
	}
	writeResult(w, res)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.catalog.Categories(r.Context(), forceParam(r)))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.cart.Get(r.Context(), forceParam(r)))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var in cart.AddItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	c, err := h.cart.AddItem(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	c, err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "itemId"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.RemoveItem(r.Context(), chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type discountRequest struct {
	Code string `json:"code"`
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	c, err := h.cart.ApplyDiscount(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	dto, err := h.cart.Checkout(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.orders.Orders(r.Context(), forceParam(r)))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	res := h.orders.Order(r.Context(), chi.URLParam(r, "orderId"), forceParam(r))
	if res.Status == resource.StatusSuccess && res.Data == nil {
		writeError(w, apperr.New(apperr.NotFound, "order not found"))
		return
	}
	writeResult(w, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in account.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	if err := h.account.Login(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.account.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.account.Profile(r.Context(), forceParam(r)))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var u account.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	saved, err := h.account.UpdateProfile(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.account.Addresses(r.Context(), forceParam(r)))
}

func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var in account.AddressInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	addr, err := h.account.CreateAddress(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addr)
}

func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var in account.AddressInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}
	in.ID = chi.URLParam(r, "addressId")

	addr, err := h.account.UpdateAddress(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.account.DeleteAddress(r.Context(), chi.URLParam(r, "addressId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.favorites.List(r.Context(), forceParam(r)))
}

type favoriteRequest struct {
	ProductID string `json:"productId"`
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.Validation, "malformed body"))
		return
	}

	if err := h.favorites.Add(r.Context(), req.ProductID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.favorites.Remove(r.Context(), chi.URLParam(r, "productId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh forces every cached resource to resync. Loads run concurrently;
// the response reports the terminal outcome per resource.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outcomes := make(map[string]string, 7)
	var mu sync.Mutex
	record := func(name, outcome string) {
		mu.Lock()
		outcomes[name] = outcome
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(7)
	go func() { defer wg.Done(); record("products", h.catalog.Products(ctx, "", true).Outcome()) }()
	go func() { defer wg.Done(); record("categories", h.catalog.Categories(ctx, true).Outcome()) }()
	go func() { defer wg.Done(); record("cart", h.cart.Get(ctx, true).Outcome()) }()
	go func() { defer wg.Done(); record("orders", h.orders.Orders(ctx, true).Outcome()) }()
	go func() { defer wg.Done(); record("profile", h.account.Profile(ctx, true).Outcome()) }()
	go func() { defer wg.Done(); record("addresses", h.account.Addresses(ctx, true).Outcome()) }()
	go func() { defer wg.Done(); record("favorites", h.favorites.List(ctx, true).Outcome()) }()
	wg.Wait()

	writeJSON(w, http.StatusOK, outcomes)
}
