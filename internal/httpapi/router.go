package httpapi

import (
	"net/http"
	"time"

	"github.com/fjod/go_market/internal/auth"
	userdomain "github.com/fjod/go_market/internal/user/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
}

// NewRouter wires all routes. The catalog is readable without a token;
// everything else requires one, and cart/checkout are vendor-only.
func NewRouter(h Handlers, issuer *auth.TokenIssuer, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)

		r.Get("/products", h.Products.ListProducts)
		r.Get("/products/{id}", h.Products.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(issuer))

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(userdomain.TypeSupplier))
				r.Post("/products", h.Products.CreateProduct)
				r.Put("/products/{id}", h.Products.UpdateProduct)
				r.Delete("/products/{id}", h.Products.DeleteProduct)
				r.Get("/my-products", h.Products.ListMyProducts)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(userdomain.TypeVendor))
				r.Route("/cart", func(r chi.Router) {
					r.Get("/", h.Cart.GetCart)
					r.Post("/items", h.Cart.AddItem)
					r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
					r.Delete("/items/{item_id}", h.Cart.RemoveItem)
					r.Delete("/", h.Cart.ClearCart)
				})
				r.Post("/checkout", h.Checkout.Checkout)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{id}", h.Orders.GetOrder)
				r.Patch("/{id}/status", h.Orders.UpdateStatus)
			})
		})
	})

	return r
}
