package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
	"github.com/xenking/digigoods/internal/storage/memory"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	hash, err := auth.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, store.UpsertUser(ctx, &user.User{
			Username:     name,
			PasswordHash: hash,
			Email:        name + "@example.com",
			CreatedAt:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		}))
	}
	for _, p := range []product.Product{
		{ID: "p1", Name: "Laptop", Price: decimal.RequireFromString("100.00"), Stock: 10},
		{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("50.00"), Stock: 1},
	} {
		require.NoError(t, store.UpsertProduct(ctx, p))
	}
	now := time.Now()
	for _, dc := range []*discount.Discount{
		{Code: "SAVE10", Percentage: decimal.NewFromInt(10), Kind: discount.KindGeneral,
			StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0), UsageLimit: 10},
		{Code: "P1OFF", Percentage: decimal.NewFromInt(20), Kind: discount.KindProductSpecific,
			StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0), UsageLimit: 10,
			ApplicableProducts: []string{"p1"}},
		{Code: "OLD", Percentage: decimal.NewFromInt(10), Kind: discount.KindGeneral,
			StartDate: now.AddDate(-1, 0, 0), EndDate: now.AddDate(0, -1, 0), UsageLimit: 10},
		{Code: "GONE", Percentage: decimal.NewFromInt(10), Kind: discount.KindGeneral,
			StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0), UsageLimit: 0},
		{Code: "GREEDY", Percentage: decimal.NewFromInt(75), Kind: discount.KindGeneral,
			StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0), UsageLimit: 10},
	} {
		require.NoError(t, store.UpsertDiscount(ctx, dc))
	}

	svc, err := checkout.NewService(
		product.NewCatalog(store.Products()),
		discount.NewLedger(store.Discounts()),
		pricing.NewDefaultEngine(),
		store,
	)
	require.NoError(t, err)

	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	h := New(Deps{
		Products: store.Products(),
		Orders:   store.Orders(),
		Checkout: svc,
		Profiles: user.NewProfileService(store.Users()),
		Auth:     auth.NewAuthenticator(store.Users(), tokens),
		Tokens:   tokens,
	})

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: store, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(userID)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.ContentLength != 0 {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out = map[string]any{"items": raw}
		}
	}
	return resp.StatusCode, out
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/checkout", env.token(t, 1),
		`{"userId": 1, "productIds": ["p1", "p2"], "discountCodes": ["SAVE10", "P1OFF"]}`)
	require.Equal(t, http.StatusCreated, status, body)

	assert.Equal(t, "Order created successfully!", body["message"])
	assert.Equal(t, 117.0, body["finalPrice"])
	assert.NotEmpty(t, body["orderId"])

	status, body = env.do(t, http.MethodGet, "/api/users/1/orders", env.token(t, 1), "")
	require.Equal(t, http.StatusOK, status)
	orders := body["items"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, 117.0, orders[0].(map[string]any)["finalPrice"])
}

func TestCheckout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		token      int64
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "other user",
			token:      2,
			body:       `{"userId": 1, "productIds": ["p1"]}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unknown product",
			token:      1,
			body:       `{"userId": 1, "productIds": ["ghost"]}`,
			wantStatus: http.StatusNotFound,
			wantMsg:    "ghost",
		},
		{
			name:       "unknown discount",
			token:      1,
			body:       `{"userId": 1, "productIds": ["p1"], "discountCodes": ["NOPE"]}`,
			wantStatus: http.StatusNotFound,
			wantMsg:    "NOPE",
		},
		{
			name:       "insufficient stock",
			token:      1,
			body:       `{"userId": 1, "productIds": ["p2", "p2"]}`,
			wantStatus: http.StatusConflict,
			wantMsg:    "p2",
		},
		{
			name:       "expired discount",
			token:      1,
			body:       `{"userId": 1, "productIds": ["p1"], "discountCodes": ["OLD"]}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "OLD",
		},
		{
			name:       "exhausted discount",
			token:      1,
			body:       `{"userId": 1, "productIds": ["p1"], "discountCodes": ["GONE"]}`,
			wantStatus: http.StatusConflict,
			wantMsg:    "GONE",
		},
		{
			name:       "excessive discount",
			token:      1,
			body:       `{"userId": 1, "productIds": ["p1"], "discountCodes": ["GREEDY"]}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "GREEDY",
		},
		{
			name:       "no products",
			token:      1,
			body:       `{"userId": 1, "productIds": []}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing user id",
			token:      1,
			body:       `{"productIds": ["p1"]}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Validation failed",
		},
		{
			name:       "malformed json",
			token:      1,
			body:       `{"userId": 1, "productIds": [`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			status, body := env.do(t, http.MethodPost, "/api/checkout", env.token(t, tt.token), tt.body)
			require.Equal(t, tt.wantStatus, status, body)
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/checkout", body["path"])
			assert.Equal(t, http.StatusText(tt.wantStatus), body["error"])
			if tt.wantMsg != "" {
				assert.Contains(t, body["message"], tt.wantMsg)
			}

			p, err := env.store.Products().GetByID(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, 10, p.Stock, "failed checkout must not take stock")
		})
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	expired := auth.NewTokens([]byte("test-secret"), -time.Minute)
	old, _, err := expired.Issue(1)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "garbage",
		"expired": old,
	} {
		t.Run(name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/checkout", token, `{"userId": 1, "productIds": ["p1"]}`)
			require.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "JWT token is missing or invalid", body["message"])
			assert.Equal(t, "Unauthorized", body["error"])
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/login", "", `{"username": "alice", "password": "password123"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Bearer", body["tokenType"])
	assert.Equal(t, 1.0, body["userId"])

	token, ok := body["token"].(string)
	require.True(t, ok)
	status, _ = env.do(t, http.MethodGet, "/api/users/1/profile", token, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", `{"username": "alice", "password": "nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid username or password", body["message"])

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", `{"username": ""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "password")
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "p1", first["id"])
	assert.Equal(t, 100.0, first["price"])

	status, body = env.do(t, http.MethodGet, "/api/products/p2", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Mouse", body["name"])

	status, _ = env.do(t, http.MethodGet, "/api/products/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, 1)

	status, body := env.do(t, http.MethodGet, "/api/users/1/profile", tok, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotContains(t, body, "passwordHash")

	status, body = env.do(t, http.MethodPut, "/api/users/1/profile", tok,
		`{"email": "new@example.com", "firstName": "Alice", "lastName": null, "phoneNumber": "+1-555"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "new@example.com", body["email"])
	assert.Equal(t, "Alice", body["firstName"])
	assert.Equal(t, "", body["lastName"])

	status, body = env.do(t, http.MethodPut, "/api/users/1/profile", tok, `{"email": "broken"}`)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Equal(t, map[string]any{"email": "Email should be valid"}, body["errors"])

	status, _ = env.do(t, http.MethodGet, "/api/users/2/profile", tok, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPut, "/api/users/2/profile", tok, `{"firstName": "Mallory"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/users/abc/profile", tok, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProfile_DeletedUser(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/users/99/profile", env.token(t, 99), "")
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "user not found with id: 99", body["message"])
}
