package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"sweet-shop/internal/admin"
	"sweet-shop/internal/catalog"
	"sweet-shop/internal/models"
	"sweet-shop/internal/purchase"
	"sweet-shop/internal/session"
	"sweet-shop/internal/store"
	"sweet-shop/internal/sweetapi"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func fakeJWT(sub string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"sub":"`+sub+`"}`)) + ".sig"
}

var (
	userToken  = fakeJWT("ann")
	adminToken = fakeJWT("root")
)

// backend is an in-memory stand-in for the sweets REST API
type backend struct {
	mu        sync.Mutex
	products  map[int64]*models.Product
	nextID    int64
	purchases []int64
	// roleChecks counts restock calls for product 0
	roleChecks int
}

func (b *backend) roleCheckCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.roleChecks
}

func newBackend() *backend {
	b := &backend{products: map[int64]*models.Product{}, nextID: 1}
	b.add("Fudge", "Chocolate", "2.50", 5)
	b.add("Toffee", "Candy", "1.25", 3)
	b.add("Gum", "Candy", "0.50", 0)
	return b
}

func (b *backend) add(name, category, price string, stock int) {
	b.products[b.nextID] = &models.Product{
		ID: b.nextID, Name: name, Category: category,
		Price: decimal.RequireFromString(price), Quantity: stock,
	}
	b.nextID++
}

func (b *backend) setStock(id int64, stock int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products[id].Quantity = stock
}

func (b *backend) stock(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.products[id].Quantity
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func (b *backend) list(filter func(models.Product) bool) []models.Product {
	out := []models.Product{}
	for _, p := range b.products {
		if filter(*p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	role := ""
	switch tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); tok {
	case "":
	case userToken:
		role = "user"
	case adminToken:
		role = "admin"
	default:
		role = "invalid"
	}

	requireAdmin := func() bool {
		switch role {
		case "admin":
			return true
		case "user":
			detail(w, http.StatusForbidden, "Admin privileges required")
		default:
			detail(w, http.StatusUnauthorized, "Could not validate credentials")
		}
		return false
	}

	path := r.URL.Path
	switch {
	case path == "/api/auth/login":
		_ = r.ParseForm()
		switch {
		case r.PostForm.Get("username") == "ann" && r.PostForm.Get("password") == "pw":
			writeJSON(w, http.StatusOK, map[string]string{"access_token": userToken, "token_type": "bearer"})
		case r.PostForm.Get("username") == "root" && r.PostForm.Get("password") == "pw":
			writeJSON(w, http.StatusOK, map[string]string{"access_token": adminToken, "token_type": "bearer"})
		default:
			detail(w, http.StatusUnauthorized, "Incorrect username or password")
		}

	case path == "/api/auth/register":
		writeJSON(w, http.StatusOK, map[string]any{"id": 7})

	case path == "/api/sweets" || path == "/api/sweets/search":
		if role == "invalid" {
			detail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		cat := r.URL.Query().Get("category")
		writeJSON(w, http.StatusOK, b.list(func(p models.Product) bool {
			return cat == "" || p.Category == cat
		}))

	case path == "/api/sweets/create":
		if !requireAdmin() {
			return
		}
		var in sweetapi.SweetInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			detail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		p := &models.Product{ID: b.nextID, Name: in.Name, Category: in.Category, Price: in.Price, Quantity: in.Quantity}
		b.products[p.ID] = p
		b.nextID++
		writeJSON(w, http.StatusOK, p)

	default:
		parts := strings.Split(strings.TrimPrefix(path, "/api/sweets/"), "/")
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			detail(w, http.StatusNotFound, "Not Found")
			return
		}
		action := ""
		if len(parts) > 1 {
			action = parts[1]
		}

		var body struct {
			Quantity *int `json:"quantity"`
		}
		if action != "" {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		switch action {
		case "restock":
			if id == 0 {
				b.roleChecks++
			}
			if !requireAdmin() {
				return
			}
			if body.Quantity == nil {
				detail(w, http.StatusUnprocessableEntity, "field required")
				return
			}
			p, ok := b.products[id]
			if !ok {
				detail(w, http.StatusNotFound, "Sweet not found")
				return
			}
			p.Quantity += *body.Quantity
			writeJSON(w, http.StatusOK, p)

		case "purchase":
			if role != "user" && role != "admin" {
				detail(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}
			p, ok := b.products[id]
			if !ok {
				detail(w, http.StatusNotFound, "Sweet not found")
				return
			}
			if body.Quantity == nil || *body.Quantity > p.Quantity {
				detail(w, http.StatusBadRequest, "Not enough stock available")
				return
			}
			p.Quantity -= *body.Quantity
			b.purchases = append(b.purchases, id)
			writeJSON(w, http.StatusOK, p)

		default:
			if !requireAdmin() {
				return
			}
			p, ok := b.products[id]
			if !ok {
				detail(w, http.StatusNotFound, "Sweet not found")
				return
			}
			if r.Method == http.MethodPut {
				var in sweetapi.SweetInput
				_ = json.NewDecoder(r.Body).Decode(&in)
				p.Name, p.Category, p.Price, p.Quantity = in.Name, in.Category, in.Price, in.Quantity
				writeJSON(w, http.StatusOK, p)
				return
			}
			delete(b.products, id)
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string][]models.CartLine
}

func (m *memCarts) LoadCart(_ context.Context, sid string) ([]models.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[sid], nil
}

func (m *memCarts) SaveCart(_ context.Context, sid string, lines []models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sid] = lines
	return nil
}

type memReceipts struct {
	mu       sync.Mutex
	receipts map[string]models.Receipt
	lines    map[string][]models.ReceiptLine
}

func (m *memReceipts) add(r models.Receipt, lines ...models.ReceiptLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.ID] = r
	m.lines[r.ID] = lines
}

func (m *memReceipts) GetReceiptsBySessionID(_ context.Context, sid string, _ int) ([]models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Receipt{}
	for _, r := range m.receipts {
		if r.SessionID == sid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReceipts) GetReceiptByID(_ context.Context, id string) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, store.ErrReceiptNotFound
	}
	return &r, nil
}

func (m *memReceipts) GetReceiptLines(_ context.Context, receiptID string) ([]models.ReceiptLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[receiptID], nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type env struct {
	backend  *backend
	receipts *memReceipts
	srv      *httptest.Server
	deps     Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()

	b := newBackend()
	backendSrv := httptest.NewServer(b)
	t.Cleanup(backendSrv.Close)

	client := sweetapi.NewClient(backendSrv.URL, 5*time.Second)
	tokens := session.NewMemoryStore()
	receipts := &memReceipts{receipts: map[string]models.Receipt{}, lines: map[string][]models.ReceiptLine{}}

	deps := Deps{
		Resolver:   session.NewResolver(tokens, client, client),
		Tokens:     tokens,
		Registrar:  client,
		Carts:      &memCarts{carts: map[string][]models.CartLine{}},
		Catalog:    catalog.NewView(client),
		Purchases:  purchase.NewTransaction(client, nil, nil),
		Admin:      admin.NewService(client),
		Receipts:   receipts,
		Checks:     map[string]Pinger{"redis": pinger{}},
		SessionTTL: time.Hour,
	}

	router := gin.New()
	NewHandler(deps).SetupRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{backend: b, receipts: receipts, srv: srv, deps: deps}
}

// browser is one cookie jar talking to the storefront
type browser struct {
	t      *testing.T
	env    *env
	client *http.Client
}

func (e *env) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, env: e, client: &http.Client{Jar: jar}}
}

func (b *browser) request(method, path, contentType string, body io.Reader) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(method, b.env.srv.URL+path, body)
	require.NoError(b.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) json(method, path string, body any) *http.Response {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = strings.NewReader(string(raw))
	}
	return b.request(method, path, "application/json", r)
}

func (b *browser) login(username string) *http.Response {
	b.t.Helper()
	form := url.Values{"username": {username}, "password": {"pw"}}
	return b.request(http.MethodPost, "/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.env.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type catalogResponse struct {
	Listing struct {
		Products      []models.Product       `json:"products"`
		Categories    []string               `json:"categories"`
		CategoryLinks []catalog.CategoryLink `json:"category_links"`
		Heading       string                 `json:"heading"`
		Notice        string                 `json:"notice"`
	} `json:"listing"`
	Session struct {
		Username string `json:"username"`
		Role     string `json:"role"`
		IsAdmin  bool   `json:"is_admin"`
	} `json:"session"`
	Cart struct {
		Count  int            `json:"count"`
		InCart map[string]int `json:"in_cart"`
	} `json:"cart"`
}

type checkoutResponse struct {
	Status    string            `json:"status"`
	Error     string            `json:"error"`
	Redirect  string            `json:"redirect"`
	Kind      string            `json:"kind"`
	Committed []models.CartLine `json:"committed"`
	Total     string            `json:"total"`
	Cart      CartView          `json:"cart"`
}

func TestHealthAndReadiness(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)

	assert.Equal(t, http.StatusOK, b.request(http.MethodGet, "/health", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, b.request(http.MethodGet, "/ready", "", nil).StatusCode)

	e.deps.Checks["redis"] = pinger{err: errors.New("connection refused")}
	resp := b.request(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, map[string]any{"redis": "connection refused"}, body["failed"])
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	b := newEnv(t).browser(t)

	first := b.request(http.MethodGet, "/cart", "", nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	sid := b.cookie(SessionCookieName)
	assert.NotEmpty(t, sid)

	second := b.request(http.MethodGet, "/cart", "", nil)
	assert.Empty(t, second.Header.Values("Set-Cookie"))
	assert.Equal(t, sid, b.cookie(SessionCookieName))
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name         string
		username     string
		wantStatus   int
		wantRedirect string
	}{
		{name: "shopper", username: "ann", wantStatus: http.StatusOK, wantRedirect: "/"},
		{name: "admin", username: "root", wantStatus: http.StatusOK, wantRedirect: "/admin"},
		{name: "bad credentials", username: "mallory", wantStatus: http.StatusUnauthorized, wantRedirect: "/login?error=Invalid+email+or+password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newEnv(t).browser(t)

			resp := b.login(tt.username)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decode[map[string]any](t, resp)
			assert.Equal(t, tt.wantRedirect, body["redirect"])
			if tt.wantStatus == http.StatusOK {
				assert.NotEmpty(t, b.cookie(session.TokenCookieName))
			}
		})
	}
}

func TestCatalogReflectsSession(t *testing.T) {
	b := newEnv(t).browser(t)

	guest := decode[catalogResponse](t, b.request(http.MethodGet, "/catalog", "", nil))
	assert.Equal(t, "guest", guest.Session.Role)
	assert.Len(t, guest.Listing.Products, 3)
	assert.Equal(t, []string{"Candy", "Chocolate"}, guest.Listing.Categories)
	assert.Equal(t, []catalog.CategoryLink{
		{Category: "Candy", URL: "/?category=Candy"},
		{Category: "Chocolate", URL: "/?category=Chocolate"},
	}, guest.Listing.CategoryLinks)
	assert.Equal(t, "All Sweets", guest.Listing.Heading)

	b.login("root")
	adm := decode[catalogResponse](t, b.request(http.MethodGet, "/catalog?category=Candy", "", nil))
	assert.Equal(t, "root", adm.Session.Username)
	assert.True(t, adm.Session.IsAdmin)
	assert.Len(t, adm.Listing.Products, 2)
	assert.Equal(t, "Search Results", adm.Listing.Heading)
	assert.Equal(t, []catalog.CategoryLink{{Category: "Candy", Active: true, URL: "/"}}, adm.Listing.CategoryLinks)

	empty := decode[catalogResponse](t, b.request(http.MethodGet, "/catalog?category=Pastry", "", nil))
	assert.Empty(t, empty.Listing.Products)
	assert.Equal(t, "Try adjusting your filters or search terms.", empty.Listing.Notice)
}

func TestCatalogStaleTokenFallsBackToPublicListing(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	u, _ := url.Parse(e.srv.URL)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: session.TokenCookieName, Value: "expired.token.value", Path: "/"}})

	resp := b.request(http.MethodGet, "/catalog", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[catalogResponse](t, resp)
	assert.Len(t, body.Listing.Products, 3)
	assert.False(t, body.Session.IsAdmin)
	assert.Empty(t, body.Listing.Notice)
}

func TestCartFlow(t *testing.T) {
	b := newEnv(t).browser(t)

	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, b.request(http.MethodPost, "/cart/items/2", "", nil).StatusCode)
	}
	cart := decode[CartView](t, b.request(http.MethodGet, "/cart", "", nil))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity, "capped at stock")
	assert.Equal(t, "3.75", cart.TotalPrice)

	b.request(http.MethodPost, "/cart/items/1", "", nil)
	cart = decode[CartView](t, b.request(http.MethodPost, "/cart/items/1/increment", "", nil))
	assert.Equal(t, 5, cart.TotalQuantity)

	cart = decode[CartView](t, b.request(http.MethodPost, "/cart/items/2/decrement", "", nil))
	assert.Equal(t, 4, cart.TotalQuantity)

	cart = decode[CartView](t, b.request(http.MethodDelete, "/cart/items/1", "", nil))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].ProductID)

	cart = decode[CartView](t, b.request(http.MethodDelete, "/cart", "", nil))
	assert.Empty(t, cart.Lines)
	assert.Equal(t, "0.00", cart.TotalPrice)
}

func TestAddToCartRejections(t *testing.T) {
	b := newEnv(t).browser(t)

	assert.Equal(t, http.StatusConflict, b.request(http.MethodPost, "/cart/items/3", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, b.request(http.MethodPost, "/cart/items/99", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, b.request(http.MethodPost, "/cart/items/abc", "", nil).StatusCode)
}

func TestCatalogSyncsCartStock(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.request(http.MethodPost, "/cart/items/1", "", nil)
	b.request(http.MethodPost, "/cart/items/1/increment", "", nil)
	b.request(http.MethodPost, "/cart/items/1/increment", "", nil)

	e.backend.setStock(1, 2)
	body := decode[catalogResponse](t, b.request(http.MethodGet, "/catalog", "", nil))

	assert.Equal(t, 2, body.Cart.Count)
	assert.Equal(t, 2, body.Cart.InCart["1"])
}

func TestCheckoutAsGuestKeepsCart(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.request(http.MethodPost, "/cart/items/1", "", nil)

	resp := b.request(http.MethodPost, "/cart/checkout", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[checkoutResponse](t, resp)
	assert.Equal(t, "/login?error=Please+log+in+to+complete+your+purchase", body.Redirect)
	assert.Len(t, body.Cart.Lines, 1)
	assert.Empty(t, e.backend.purchases)
}

func TestCheckoutSuccess(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("ann")
	b.request(http.MethodPost, "/cart/items/1", "", nil)
	b.request(http.MethodPost, "/cart/items/1", "", nil)
	b.request(http.MethodPost, "/cart/items/2", "", nil)

	resp := b.request(http.MethodPost, "/cart/checkout", "", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[checkoutResponse](t, resp)
	assert.Equal(t, "complete", body.Status)
	assert.Equal(t, "6.25", body.Total)
	assert.Empty(t, body.Cart.Lines)
	assert.Equal(t, []int64{1, 2}, e.backend.purchases)
	assert.Equal(t, 3, e.backend.stock(1))
}

func TestCheckoutHaltsAndKeepsRemainder(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.login("ann")
	b.request(http.MethodPost, "/cart/items/1", "", nil)
	b.request(http.MethodPost, "/cart/items/2", "", nil)
	b.request(http.MethodPost, "/cart/items/2", "", nil)

	// someone else bought most of the toffee
	e.backend.setStock(2, 1)
	resp := b.request(http.MethodPost, "/cart/checkout", "", nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[checkoutResponse](t, resp)
	assert.Equal(t, "halted", body.Status)
	assert.Equal(t, "stock_exhausted", body.Kind)
	assert.Equal(t, "Not enough stock available", body.Error)
	require.Len(t, body.Committed, 1)
	assert.Equal(t, int64(1), body.Committed[0].ProductID)
	require.Len(t, body.Cart.Lines, 1)
	assert.Equal(t, int64(2), body.Cart.Lines[0].ProductID)
	assert.Equal(t, 2, body.Cart.Lines[0].Quantity)
	assert.Equal(t, []int64{1}, e.backend.purchases)
}

func TestCheckoutEmptyCart(t *testing.T) {
	b := newEnv(t).browser(t)
	b.login("ann")

	assert.Equal(t, http.StatusBadRequest, b.request(http.MethodPost, "/cart/checkout", "", nil).StatusCode)
}

func TestLogoutDropsSession(t *testing.T) {
	b := newEnv(t).browser(t)
	b.login("ann")

	resp := b.request(http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, b.cookie(session.TokenCookieName))

	body := decode[catalogResponse](t, b.request(http.MethodGet, "/catalog", "", nil))
	assert.Equal(t, "guest", body.Session.Role)
	assert.Empty(t, body.Session.Username)
}

func TestRegister(t *testing.T) {
	b := newEnv(t).browser(t)

	resp := b.json(http.MethodPost, "/auth/register", RegisterRequest{Username: "bo", Email: "bo@x.io", Password: "a", ConfirmPassword: "b"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "/signup?error=Passwords+do+not+match", decode[map[string]any](t, resp)["redirect"])

	resp = b.json(http.MethodPost, "/auth/register", RegisterRequest{Username: "bo", Email: "bo@x.io", Password: "a", ConfirmPassword: "a"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/login?success=Account+created.+Please+log+in.", decode[map[string]any](t, resp)["redirect"])
}

func TestAdminActions(t *testing.T) {
	e := newEnv(t)
	nougat := map[string]any{"name": "Nougat", "category": "Candy", "price": 3.5, "quantity": 2}

	guest := e.browser(t)
	resp := guest.json(http.MethodPost, "/admin/sweets", nougat)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	shopper := e.browser(t)
	shopper.login("ann")
	resp = shopper.json(http.MethodPost, "/admin/sweets", nougat)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "/admin?error=Admin+privileges+required", decode[map[string]any](t, resp)["redirect"])

	root := e.browser(t)
	root.login("root")

	resp = root.json(http.MethodPost, "/admin/sweets", map[string]any{"name": "Nougat", "category": "Candy", "price": -1, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = root.json(http.MethodPost, "/admin/sweets", nougat)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Product](t, resp)
	assert.Equal(t, "Nougat", created.Name)

	resp = root.json(http.MethodPost, "/admin/sweets/"+strconv.FormatInt(created.ID, 10)+"/restock", map[string]int{"quantity": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, decode[models.Product](t, resp).Quantity)

	resp = root.json(http.MethodPost, "/admin/sweets/1/restock", map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = root.json(http.MethodPut, "/admin/sweets/1", map[string]any{"name": "Dark Fudge", "category": "Chocolate", "price": "2.75", "quantity": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dark Fudge", decode[models.Product](t, resp).Name)

	resp = root.request(http.MethodDelete, "/admin/sweets/3", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = root.request(http.MethodDelete, "/admin/sweets/3", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReceipts(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	b.request(http.MethodGet, "/cart", "", nil)
	sid := b.cookie(SessionCookieName)
	require.NotEmpty(t, sid)

	mine := models.Receipt{ID: uuid.NewString(), SessionID: sid, Status: models.ReceiptStatusPartial, TotalAmount: decimal.RequireFromString("5")}
	e.receipts.add(mine, models.ReceiptLine{ID: 1, ReceiptID: mine.ID, ProductID: 1, Name: "Fudge", Quantity: 2, UnitPrice: decimal.RequireFromString("2.50")})
	theirs := models.Receipt{ID: uuid.NewString(), SessionID: uuid.NewString(), Status: models.ReceiptStatusComplete}
	e.receipts.add(theirs)

	list := decode[struct {
		Receipts []models.Receipt `json:"receipts"`
	}](t, b.request(http.MethodGet, "/receipts", "", nil))
	require.Len(t, list.Receipts, 1)
	assert.Equal(t, mine.ID, list.Receipts[0].ID)

	resp := b.request(http.MethodGet, "/receipts/"+mine.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[struct {
		Receipt models.Receipt       `json:"receipt"`
		Lines   []models.ReceiptLine `json:"lines"`
	}](t, resp)
	assert.Equal(t, models.ReceiptStatusPartial, detail.Receipt.Status)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, "Fudge", detail.Lines[0].Name)
	assert.True(t, decimal.RequireFromString("2.5").Equal(detail.Lines[0].UnitPrice))

	for _, path := range []string{"/receipts/" + theirs.ID, "/receipts/" + uuid.NewString(), "/receipts/not-a-receipt"} {
		assert.Equal(t, http.StatusNotFound, b.request(http.MethodGet, path, "", nil).StatusCode, path)
	}
}

func TestOnlyCatalogChecksRole(t *testing.T) {
	e := newEnv(t)
	b := e.browser(t)
	require.Equal(t, http.StatusOK, b.login("ann").StatusCode)
	afterLogin := e.backend.roleCheckCount()

	b.request(http.MethodGet, "/catalog", "", nil)
	assert.Equal(t, afterLogin+1, e.backend.roleCheckCount())

	require.Equal(t, http.StatusOK, b.request(http.MethodPost, "/cart/items/1", "", nil).StatusCode)
	require.Equal(t, http.StatusOK, b.request(http.MethodPost, "/cart/checkout", "", nil).StatusCode)
	resp := b.json(http.MethodPost, "/admin/sweets/1/restock", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, afterLogin+1, e.backend.roleCheckCount())
}
