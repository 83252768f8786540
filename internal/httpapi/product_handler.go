package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	catalogdomain "github.com/fjod/go_market/internal/catalog/domain"
	catalogrepo "github.com/fjod/go_market/internal/catalog/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CatalogStore is the slice of the catalog repository the HTTP layer
// uses.
type CatalogStore interface {
	CreateProduct(ctx context.Context, p *catalogdomain.Product) error
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
	ListProducts(ctx context.Context, params catalogrepo.ListParams) ([]*catalogdomain.Product, error)
	ListProductsBySupplier(ctx context.Context, supplierID string) ([]*catalogdomain.Product, error)
	UpdateProduct(ctx context.Context, p *catalogdomain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type ProductHandler struct {
	catalog CatalogStore
}

func NewProductHandler(catalog CatalogStore) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

type CreateProductRequestDTO struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Unit          string  `json:"unit"`
	MinOrder      int     `json:"min_order"`
	Category      string  `json:"category"`
	Image         string  `json:"image"`
	StockQuantity int     `json:"stock_quantity"`
}

// CreateProduct registers a catalog entry owned by the calling
// supplier.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := catalogdomain.NewProduct(uuid.New().String(), req.Name, req.Price,
		catalogdomain.Unit(req.Unit), req.MinOrder, catalogdomain.Category(req.Category),
		req.Image, req.Description, callerID(r.Context()), req.StockQuantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}

	if err := h.catalog.CreateProduct(r.Context(), product); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create product")
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	respondJSON(w, http.StatusOK, product)
}

// UpdateProduct overwrites a catalog entry. Only the owning supplier
// may touch it.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	existing, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}
	if existing.SupplierID != callerID(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", "product belongs to another supplier")
		return
	}

	var req CreateProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Revalidate through the factory; identity and ownership are fixed.
	updated, err := catalogdomain.NewProduct(existing.ID, req.Name, req.Price,
		catalogdomain.Unit(req.Unit), req.MinOrder, catalogdomain.Category(req.Category),
		req.Image, req.Description, existing.SupplierID, req.StockQuantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	updated.CreatedAt = existing.CreatedAt

	if err := h.catalog.UpdateProduct(r.Context(), updated); err != nil {
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update product")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// DeleteProduct removes a catalog entry. Only the owning supplier may
// delete it; carts holding the product keep their snapshot lines and
// fail at checkout instead.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.catalog.GetProduct(r.Context(), id)
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}
	if existing.SupplierID != callerID(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", "product belongs to another supplier")
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, catalogrepo.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete product")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListProducts returns the catalog, optionally filtered by ?category=
// and ?search=.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := catalogrepo.ListParams{
		Category: catalogdomain.Category(r.URL.Query().Get("category")),
		Search:   r.URL.Query().Get("search"),
	}
	if params.Category != "" && !params.Category.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_category", "unknown category")
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}
	if products == nil {
		products = []*catalogdomain.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}

// ListMyProducts returns the calling supplier's own catalog entries.
func (h *ProductHandler) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProductsBySupplier(r.Context(), callerID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list products")
		return
	}
	if products == nil {
		products = []*catalogdomain.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}
