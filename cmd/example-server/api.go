package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"auth-gateway/middleware/auth"
	"auth-gateway/middleware/auth/domain"
	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/stats"
)

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	VendorID string  `json:"vendor_id,omitempty"`
}

type Order struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Products  []string `json:"products"`
	Total     float64  `json:"total"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"created_at"`
}

// catalog é o "banco" do exemplo: tudo em memória.
type catalog struct {
	mu       sync.RWMutex
	products []Product
	orders   []Order
}

func newCatalog() *catalog {
	return &catalog{
		products: []Product{
			{ID: "p-1", Name: "Mechanical keyboard", Price: 349.90, Stock: 12, VendorID: "v-1"},
			{ID: "p-2", Name: "USB-C hub", Price: 129.00, Stock: 40, VendorID: "v-1"},
			{ID: "p-3", Name: "27\" monitor", Price: 1899.00, Stock: 3, VendorID: "v-2"},
		},
		orders: []Order{
			{ID: "o-1", UserID: "u-customer", Products: []string{"p-1"}, Total: 349.90, Status: "shipped", CreatedAt: "2026-01-10T14:00:00Z"},
			{ID: "o-2", UserID: "u-customer", Products: []string{"p-2", "p-3"}, Total: 2028.00, Status: "pending", CreatedAt: "2026-02-02T09:30:00Z"},
		},
	}
}

type api struct {
	catalog *catalog
	stats   *stats.Memory
}

func (a *api) routes(r chi.Router, wr *auth.Wrapper) {
	r.Method(http.MethodGet, "/api/products", wr.Optional(a.listProducts))
	r.Method(http.MethodPost, "/api/products", wr.RoleRequired(domain.RoleVendor, a.createProduct))
	r.Method(http.MethodGet, "/api/me", wr.Required(a.me))
	r.Method(http.MethodGet, "/api/orders", wr.Required(a.listOrders))
	r.Method(http.MethodGet, "/api/admin/stats", wr.RoleRequired(domain.RoleAdmin, a.adminStats))
	r.Method(http.MethodGet, "/api/inventory", wr.Required(a.inventory))
}

func (a *api) listProducts(w http.ResponseWriter, _ *http.Request, id *domain.Identity) {
	a.catalog.mu.RLock()
	products := append([]Product(nil), a.catalog.products...)
	a.catalog.mu.RUnlock()

	resp := map[string]any{"products": products}
	if id != nil {
		resp["viewer"] = id.ID
	}
	_ = httpjson.Write(w, http.StatusOK, resp)
}

func (a *api) createProduct(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
	var p Product
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		_ = httpjson.Error(w, http.StatusBadRequest, "invalid product")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Price <= 0 || p.Stock < 0 {
		_ = httpjson.Error(w, http.StatusBadRequest, "name, positive price and stock are required")
		return
	}
	p.VendorID = id.ID

	a.catalog.mu.Lock()
	p.ID = "p-" + strconv.Itoa(len(a.catalog.products)+1)
	a.catalog.products = append(a.catalog.products, p)
	a.catalog.mu.Unlock()

	_ = httpjson.Write(w, http.StatusCreated, p)
}

func (a *api) me(w http.ResponseWriter, _ *http.Request, id *domain.Identity) {
	_ = httpjson.Write(w, http.StatusOK, id)
}

func (a *api) listOrders(w http.ResponseWriter, _ *http.Request, id *domain.Identity) {
	a.catalog.mu.RLock()
	orders := []Order{}
	for _, o := range a.catalog.orders {
		if o.UserID == id.ID {
			orders = append(orders, o)
		}
	}
	a.catalog.mu.RUnlock()

	_ = httpjson.Write(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *api) adminStats(w http.ResponseWriter, _ *http.Request, _ *domain.Identity) {
	a.catalog.mu.RLock()
	resp := map[string]any{
		"products": len(a.catalog.products),
		"orders":   len(a.catalog.orders),
	}
	a.catalog.mu.RUnlock()

	if a.stats != nil {
		resp["decisions"] = map[string]any{
			"auth":       a.stats.Total(stats.SourceAuth),
			"rate_limit": a.stats.Total(stats.SourceRateLimit),
			"by_status":  a.stats.ByStatus(),
		}
	}
	_ = httpjson.Write(w, http.StatusOK, resp)
}

// inventory usa a hierarquia de roles (admin também passa), diferente das
// rotas com RoleRequired, que exigem a role exata.
func (a *api) inventory(w http.ResponseWriter, _ *http.Request, id *domain.Identity) {
	if !domain.HasPermission(id.Role, domain.RoleVendor) {
		dec := domain.Deny(domain.ErrInsufficientRole, domain.RoleReason(domain.RoleVendor))
		_ = httpjson.Error(w, int(dec.Status), dec.Reason)
		return
	}

	a.catalog.mu.RLock()
	stock := make(map[string]int, len(a.catalog.products))
	for _, p := range a.catalog.products {
		if id.Role == domain.RoleAdmin || p.VendorID == id.ID {
			stock[p.ID] = p.Stock
		}
	}
	a.catalog.mu.RUnlock()

	_ = httpjson.Write(w, http.StatusOK, map[string]any{"stock": stock})
}
