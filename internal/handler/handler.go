// Package handler exposes the checkout service over HTTP.
package handler

import (
	"net/http"

	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// Deps holds the domain dependencies of a Handler.
type Deps struct {
	Products product.Repository
	Orders   order.Repository
	Checkout *checkout.Service
	Profiles *user.ProfileService
	Auth     *auth.Authenticator
	Tokens   *auth.Tokens
}

// Handler serves the public API, delegating business logic to the domain
// services.
type Handler struct {
	products product.Repository
	orders   order.Repository
	checkout *checkout.Service
	profiles *user.ProfileService
	auth     *auth.Authenticator
	tokens   *auth.Tokens
}

// New constructs a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		products: deps.Products,
		orders:   deps.Orders,
		checkout: deps.Checkout,
		profiles: deps.Profiles,
		auth:     deps.Auth,
		tokens:   deps.Tokens,
	}
}

// Routes returns the API routes. Routes under /api/users and /api/checkout
// require a bearer token.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", h.Login)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productId}", h.GetProduct)

	mux.Handle("POST /api/checkout", h.RequireAuth(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/users/{userId}/profile", h.RequireAuth(http.HandlerFunc(h.GetProfile)))
	mux.Handle("PUT /api/users/{userId}/profile", h.RequireAuth(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("GET /api/users/{userId}/orders", h.RequireAuth(http.HandlerFunc(h.ListOrders)))

	return mux
}
