// Package httpapi is the caller-facing surface over the register. Every
// endpoint is synchronous in its in-memory effect; persistence trails behind
// on the register's pump.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nurbekd/poscore/internal/application/register"
	"github.com/nurbekd/poscore/internal/domain"
	"github.com/nurbekd/poscore/internal/observability"
)

// Service is the slice of the register the HTTP layer consumes.
type Service interface {
	Ready() bool

	Menu() ([]domain.MenuItem, error)
	AddMenuItem(name string, price float64, image string) (domain.MenuItem, error)
	RemoveMenuItem(id string) error

	CurrentCart() (domain.Cart, error)
	SavedCarts() ([]domain.Cart, error)
	NewCart(name string) (domain.Cart, error)
	OpenCart(name string) (domain.Cart, error)
	AddLine(itemID string) (domain.Cart, error)
	DecrementLine(itemID string) (domain.Cart, error)
	SetLineQuantity(itemID string, quantity int) (domain.Cart, error)
	RemoveLine(itemID string) (domain.Cart, error)
	SaveCart() (domain.Cart, error)
	DeleteSavedCart(name string) error
	Discard() error
	Checkout(amountPaid float64) (domain.Order, error)

	Orders(query string) ([]domain.Order, error)
	Receipt(id string) (domain.Order, register.ReceiptStats, error)
}

type Server struct {
	service Service
	mux     *http.ServeMux
	logger  *zap.Logger
	metrics observability.Metrics
}

func New(service Service, logger *zap.Logger, metrics observability.Metrics) *Server {
	s := &Server{
		service: service,
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.healthz)

	s.mux.HandleFunc("GET /menu", s.listMenu)
	s.mux.HandleFunc("POST /menu", s.addMenuItem)
	s.mux.HandleFunc("DELETE /menu/{id}", s.removeMenuItem)

	s.mux.HandleFunc("GET /carts", s.listSavedCarts)
	s.mux.HandleFunc("POST /carts", s.newCart)
	s.mux.HandleFunc("POST /carts/open", s.openCart)
	s.mux.HandleFunc("DELETE /carts/{name}", s.deleteSavedCart)

	s.mux.HandleFunc("GET /cart", s.currentCart)
	s.mux.HandleFunc("POST /cart/items", s.addLine)
	s.mux.HandleFunc("POST /cart/items/{id}/decrement", s.decrementLine)
	s.mux.HandleFunc("PUT /cart/items/{id}", s.setLineQuantity)
	s.mux.HandleFunc("DELETE /cart/items/{id}", s.removeLine)
	s.mux.HandleFunc("POST /cart/save", s.saveCart)
	s.mux.HandleFunc("POST /cart/discard", s.discardCart)
	s.mux.HandleFunc("POST /cart/checkout", s.checkout)

	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("GET /orders/{id}", s.getReceipt)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if !s.service.Ready() {
		http.Error(w, "loading", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// --- menu ---

func (s *Server) listMenu(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Menu()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type addMenuItemRequest struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
	Image string   `json:"image"`
}

func (s *Server) addMenuItem(w http.ResponseWriter, r *http.Request) {
	var req addMenuItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Price == nil {
		http.Error(w, "price is required", http.StatusBadRequest)
		return
	}
	item, err := s.service.AddMenuItem(req.Name, *req.Price, req.Image)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveMenuItem(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- carts ---

func (s *Server) listSavedCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := s.service.SavedCarts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carts)
}

type cartNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) newCart(w http.ResponseWriter, r *http.Request) {
	var req cartNameRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.service.NewCart(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) openCart(w http.ResponseWriter, r *http.Request) {
	var req cartNameRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.service.OpenCart(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteSavedCart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSavedCart(r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.CurrentCart()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type addLineRequest struct {
	ItemID string `json:"item_id"`
}

func (s *Server) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ItemID == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}
	c, err := s.service.AddLine(req.ItemID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) decrementLine(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.DecrementLine(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) setLineQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		http.Error(w, "quantity is required", http.StatusBadRequest)
		return
	}
	c, err := s.service.SetLineQuantity(r.PathValue("id"), *req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.RemoveLine(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) saveCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.SaveCart()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) discardCart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	AmountPaid *float64 `json:"amount_paid"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.AmountPaid == nil {
		http.Error(w, "amount_paid is required", http.StatusBadRequest)
		return
	}
	order, err := s.service.Checkout(*req.AmountPaid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// --- orders ---

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.service.Orders(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	order, st, err := s.service.Receipt(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	observability.AppendServerTiming(w, "cache", st.CacheMs, "")
	observability.AppendServerTiming(w, "history", st.HistoryMs, "")
	observability.AppendServerTiming(w, "source", 0, string(st.Source))
	w.Header().Set("X-Source", string(st.Source))
	observability.SetIfPos(w, "X-Cache-Time", st.CacheMs)

	writeJSON(w, http.StatusOK, order)
}

// --- plumbing ---

// decode enforces a JSON content type and strict field checking; it writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.logger.Error("request decode failed", zap.Error(err))
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotLoaded):
		http.Error(w, "loading", http.StatusServiceUnavailable)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe blocks until the context is canceled, then shuts the server
// down gracefully. It does not return before Shutdown has completed, so by
// the time the caller proceeds to tear down the register no handler is still
// in flight.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	handler := ServerTimingApp(s.metrics)(s.mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
	}
	return err
}
