package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"lavenderlily/internal/domain"
	"lavenderlily/internal/payments"
	"lavenderlily/internal/repository/cartline"
	orderrepo "lavenderlily/internal/repository/order"
	tokenrepo "lavenderlily/internal/repository/token"
	cartsvc "lavenderlily/internal/service/cart"
	categorysvc "lavenderlily/internal/service/category"
	checkoutsvc "lavenderlily/internal/service/checkout"
	customersvc "lavenderlily/internal/service/customer"
	guestsvc "lavenderlily/internal/service/guest"
	productsvc "lavenderlily/internal/service/product"
	settlementsvc "lavenderlily/internal/service/settlement"
)

type memCustomerRepo struct {
	byEmail map[string]domain.Customer
	nextID  int
}

func (r *memCustomerRepo) Create(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	if _, ok := r.byEmail[c.Email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	r.nextID++
	c.ID = "u" + strconv.Itoa(r.nextID)
	r.byEmail[c.Email] = c
	return &c, nil
}

func (r *memCustomerRepo) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	c, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *memCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	for _, c := range r.byEmail {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memTokenRepo struct {
	tokens map[string]tokenrepo.Token
}

func (r *memTokenRepo) Create(_ context.Context, t tokenrepo.Token) error {
	if _, ok := r.tokens[t.Token]; ok {
		return domain.ErrAlreadyExists
	}
	r.tokens[t.Token] = t
	return nil
}

func (r *memTokenRepo) Get(_ context.Context, token string) (*tokenrepo.Token, error) {
	t, ok := r.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *memTokenRepo) Delete(_ context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

type memProductRepo struct {
	products map[string]domain.Product
}

func (r *memProductRepo) List(_ context.Context, categoryID string) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if categoryID != "" && (p.CategoryID == nil || *p.CategoryID != categoryID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *memProductRepo) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	for _, p := range r.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memProductRepo) ListByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.products[p.ID] = p
	return &p, nil
}

type memCategoryRepo struct {
	categories []domain.Category
}

func (r *memCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	return r.categories, nil
}

func (r *memCategoryRepo) GetBySlug(_ context.Context, slug string) (*domain.Category, error) {
	for _, c := range r.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memCategoryRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	r.categories = append(r.categories, c)
	return &c, nil
}

type memGuestStore struct {
	slots map[string][]domain.CartLine
}

func (s *memGuestStore) Read(_ context.Context, guestID string) ([]domain.CartLine, error) {
	return s.slots[guestID], nil
}

func (s *memGuestStore) Write(_ context.Context, guestID string, lines []domain.CartLine) error {
	s.slots[guestID] = lines
	return nil
}

func (s *memGuestStore) Clear(_ context.Context, guestID string) error {
	delete(s.slots, guestID)
	return nil
}

type memLineRepo struct {
	byUser map[string][]domain.CartLine
	nextID int
}

func (r *memLineRepo) ListForUser(_ context.Context, userID string) ([]domain.CartLine, error) {
	return r.byUser[userID], nil
}

func (r *memLineRepo) Insert(_ context.Context, in cartline.InsertInput) (*domain.CartLine, error) {
	for _, line := range r.byUser[in.UserID] {
		if line.Matches(in.ProductID, in.Variant) {
			return nil, domain.ErrAlreadyExists
		}
	}
	r.nextID++
	line := domain.CartLine{
		ID:        "line-" + strconv.Itoa(r.nextID),
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Variant:   in.Variant,
	}
	r.byUser[in.UserID] = append(r.byUser[in.UserID], line)
	return &line, nil
}

func (r *memLineRepo) UpdateQuantity(_ context.Context, lineID string, quantity int) error {
	for userID, lines := range r.byUser {
		for i, line := range lines {
			if line.ID == lineID {
				r.byUser[userID][i].Quantity = quantity
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (r *memLineRepo) Delete(_ context.Context, lineID string) error {
	for userID, lines := range r.byUser {
		for i, line := range lines {
			if line.ID == lineID {
				r.byUser[userID] = append(lines[:i], lines[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (r *memLineRepo) DeleteAllForUser(_ context.Context, userID string) error {
	delete(r.byUser, userID)
	return nil
}

type memOrderRepo struct {
	orders []domain.Order
	nextID int
}

func (r *memOrderRepo) Create(_ context.Context, in orderrepo.CreateInput) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.SessionID == in.SessionID {
			return nil, domain.ErrAlreadyExists
		}
	}
	r.nextID++
	order := domain.Order{
		ID:          "o" + strconv.Itoa(r.nextID),
		UserID:      in.UserID,
		OrderNumber: "ORD-TEST-" + strconv.Itoa(r.nextID),
		Status:      domain.OrderStatusPending,
		SessionID:   in.SessionID,
		TotalCents:  in.TotalCents,
	}
	r.orders = append(r.orders, order)
	return &order, nil
}

func (r *memOrderRepo) GetBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memOrderRepo) ListForUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubPaymentProvider struct {
	session *payments.Session
	details *payments.SessionDetails
}

func (s *stubPaymentProvider) CreateCheckoutSession(_ context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	if s.session == nil {
		return nil, errors.New("no session configured")
	}
	if s.details != nil {
		s.details.Metadata = params.Metadata
	}
	return s.session, nil
}

func (s *stubPaymentProvider) GetCheckoutSession(_ context.Context, sessionID string) (*payments.SessionDetails, error) {
	if s.details == nil || s.details.ID != sessionID {
		return nil, errors.New("no such session")
	}
	return s.details, nil
}

type testEnv struct {
	router   *gin.Engine
	orders   *memOrderRepo
	guests   *memGuestStore
	lines    *memLineRepo
	provider *stubPaymentProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)

	dressCategoryID := "c1"
	products := &memProductRepo{products: map[string]domain.Product{
		"p1": {ID: "p1", Slug: "lavender-midi-dress", Name: "Lavender Midi Dress", PriceCents: 24500, Currency: "aed", CategoryID: &dressCategoryID},
		"p2": {ID: "p2", Slug: "chiffon-scarf-lilac", Name: "Lilac Chiffon Scarf", PriceCents: 7500, Currency: "aed"},
	}}
	categories := &memCategoryRepo{categories: []domain.Category{{ID: "c1", Slug: "dresses", Name: "Dresses"}}}
	guests := &memGuestStore{slots: make(map[string][]domain.CartLine)}
	lines := &memLineRepo{byUser: make(map[string][]domain.CartLine)}
	orders := &memOrderRepo{}
	provider := &stubPaymentProvider{}

	cartService := cartsvc.New(guests, lines, products, cartsvc.NewNotifier(logger), logger)
	customerService := customersvc.New(&memCustomerRepo{byEmail: make(map[string]domain.Customer)}, &memTokenRepo{tokens: make(map[string]tokenrepo.Token)})
	guestService := guestsvc.New()
	checkoutService := checkoutsvc.New(cartService, products, provider, checkoutsvc.Config{
		SuccessURL: "https://shop.test/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.test/checkout",
		Currency:   "aed",
	})
	settlementService := settlementsvc.New(orders, cartService, provider, logger)

	router := buildRouter(logger, nil, nil, Deps{
		Customers:  customerService,
		Guests:     guestService,
		Cart:       cartService,
		Checkout:   checkoutService,
		Settlement: settlementService,
		Products:   productsvc.New(products),
		Categories: categorysvc.New(categories),
		Orders:     orders,
	}, nil)

	return &testEnv{router: router, orders: orders, guests: guests, lines: lines, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) guestToken(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/guest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest session: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func (e *testEnv) signup(t *testing.T, guestToken string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", guestToken, map[string]string{
		"email":    "lina@example.com",
		"password": "sufficiently-long",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected a session token from signup")
	}
	return resp.Token
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCartRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/cart", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.guestToken(t)

	rec := env.do(t, http.MethodPost, "/api/cart/lines", token, map[string]any{
		"productId": "p1", "quantity": 2, "size": "M",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add line: status %d body %s", rec.Code, rec.Body.String())
	}

	var cart cartResponse
	rec = env.do(t, http.MethodGet, "/api/cart", token, nil)
	decode(t, rec, &cart)
	if len(cart.Lines) != 1 || cart.Lines[0].Name != "Lavender Midi Dress" {
		t.Fatalf("unexpected cart: %+v", cart)
	}
	if cart.SubtotalCents != 49000 || cart.Count != 2 {
		t.Fatalf("unexpected totals: %+v", cart)
	}

	// Adding the same size again grows the one line instead of
	// creating a second.
	env.do(t, http.MethodPost, "/api/cart/lines", token, map[string]any{
		"productId": "p1", "quantity": 1, "size": "M",
	})
	rec = env.do(t, http.MethodGet, "/api/cart", token, nil)
	decode(t, rec, &cart)
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged line of 3, got %+v", cart)
	}
}

func TestSignupMergesGuestCart(t *testing.T) {
	env := newTestEnv(t)
	guestToken := env.guestToken(t)

	env.do(t, http.MethodPost, "/api/cart/lines", guestToken, map[string]any{
		"productId": "p2", "quantity": 1,
	})

	userToken := env.signup(t, guestToken)

	var cart cartResponse
	rec := env.do(t, http.MethodGet, "/api/cart", userToken, nil)
	decode(t, rec, &cart)
	if len(cart.Lines) != 1 || cart.Lines[0].ProductID != "p2" {
		t.Fatalf("expected merged guest line, got %+v", cart)
	}

	// The guest slot is consumed by the merge.
	for _, slot := range env.guests.slots {
		if len(slot) != 0 {
			t.Fatalf("expected guest slot emptied, got %+v", slot)
		}
	}
}

func TestCheckoutAndSettlementFlow(t *testing.T) {
	env := newTestEnv(t)
	guestToken := env.guestToken(t)
	userToken := env.signup(t, guestToken)

	env.do(t, http.MethodPost, "/api/cart/lines", userToken, map[string]any{
		"productId": "p1", "quantity": 1,
	})

	env.provider.session = &payments.Session{ID: "cs_1", URL: "https://pay.test/cs_1"}
	env.provider.details = &payments.SessionDetails{
		ID:            "cs_1",
		PaymentStatus: payments.PaymentStatusPaid,
		AmountCents:   26000,
		Currency:      "aed",
	}

	rec := env.do(t, http.MethodPost, "/api/checkout/session", userToken, map[string]any{
		"customerDetails": map[string]string{
			"email": "lina@example.com", "firstName": "Lina", "lastName": "Haddad",
		},
		"shippingAddress": map[string]string{
			"street": "1 Palm St", "city": "Dubai", "postalCode": "0000", "country": "AE",
		},
		"shippingOption": "express",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: status %d body %s", rec.Code, rec.Body.String())
	}
	var session struct {
		URL string `json:"url"`
	}
	decode(t, rec, &session)
	if session.URL != "https://pay.test/cs_1" {
		t.Fatalf("unexpected session: %+v", session)
	}

	rec = env.do(t, http.MethodGet, "/api/checkout/verify?session_id=cs_1", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		State       string `json:"state"`
		OrderNumber string `json:"orderNumber"`
	}
	decode(t, rec, &result)
	if result.State != "settled" || result.OrderNumber == "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	// The cart is spent and the order shows up in history.
	var cart cartResponse
	rec = env.do(t, http.MethodGet, "/api/cart", userToken, nil)
	decode(t, rec, &cart)
	if len(cart.Lines) != 0 {
		t.Fatalf("expected empty cart after settlement, got %+v", cart)
	}

	rec = env.do(t, http.MethodGet, "/api/orders", userToken, nil)
	var orders struct {
		Orders []domain.Order `json:"orders"`
	}
	decode(t, rec, &orders)
	if len(orders.Orders) != 1 || orders.Orders[0].OrderNumber != result.OrderNumber {
		t.Fatalf("unexpected orders: %+v", orders.Orders)
	}

	// Verifying again settles idempotently on the same order.
	rec = env.do(t, http.MethodGet, "/api/checkout/verify?session_id=cs_1", userToken, nil)
	decode(t, rec, &result)
	if result.State != "settled" || len(env.orders.orders) != 1 {
		t.Fatalf("expected idempotent settle, got %+v with %d orders", result, len(env.orders.orders))
	}
}

func TestVerifyFailedPaymentKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	guestToken := env.guestToken(t)
	userToken := env.signup(t, guestToken)

	env.do(t, http.MethodPost, "/api/cart/lines", userToken, map[string]any{
		"productId": "p1", "quantity": 1,
	})
	env.provider.details = &payments.SessionDetails{ID: "cs_2", PaymentStatus: payments.PaymentStatusUnpaid}

	rec := env.do(t, http.MethodGet, "/api/checkout/verify?session_id=cs_2", userToken, nil)
	var result struct {
		State string `json:"state"`
	}
	decode(t, rec, &result)
	if result.State != "failed" {
		t.Fatalf("expected failed, got %+v", result)
	}

	var cart cartResponse
	rec = env.do(t, http.MethodGet, "/api/cart", userToken, nil)
	decode(t, rec, &cart)
	if len(cart.Lines) != 1 {
		t.Fatalf("expected cart preserved, got %+v", cart)
	}
	if len(env.orders.orders) != 0 {
		t.Fatalf("expected no orders, got %+v", env.orders.orders)
	}
}

func TestCheckoutValidationReportsFields(t *testing.T) {
	env := newTestEnv(t)
	guestToken := env.guestToken(t)
	userToken := env.signup(t, guestToken)
	env.do(t, http.MethodPost, "/api/cart/lines", userToken, map[string]any{"productId": "p1", "quantity": 1})

	rec := env.do(t, http.MethodPost, "/api/checkout/session", userToken, map[string]any{
		"customerDetails": map[string]string{"email": "lina@example.com"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Fields []string `json:"fields"`
	}
	decode(t, rec, &resp)
	if len(resp.Fields) == 0 {
		t.Fatalf("expected missing fields listed, got %s", rec.Body.String())
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/products/lavender-midi-dress", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected slug lookup to work, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/products/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/categories", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list categories: %d", rec.Code)
	}
}

func TestProductsFilterByCategorySlug(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/products?category=dresses", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list: %d", rec.Code)
	}
	var resp struct {
		Products []struct {
			Slug string `json:"slug"`
		} `json:"products"`
	}
	decode(t, rec, &resp)
	if len(resp.Products) != 1 || resp.Products[0].Slug != "lavender-midi-dress" {
		t.Fatalf("expected only the dress, got %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/products?category=no-such-category", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown category: %d", rec.Code)
	}
	resp.Products = nil
	decode(t, rec, &resp)
	if len(resp.Products) != 0 {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
}
