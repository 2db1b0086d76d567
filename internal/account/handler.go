package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderUserID carries the account id set by the upstream authenticator.
const HeaderUserID = "X-User-ID"

type ctxKey struct{}

// NewContext returns ctx carrying a.
func NewContext(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the account resolved by Middleware.
func FromContext(ctx context.Context) (*Account, bool) {
	a, ok := ctx.Value(ctxKey{}).(*Account)
	return a, ok
}

// Middleware resolves the X-User-ID header into an Account, refreshing its
// quota, and rejects the request when the header is missing or unknown.
func Middleware(svc *Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderUserID)))
			if err != nil {
				http.Error(w, "Missing or invalid "+HeaderUserID, http.StatusUnauthorized)
				return
			}

			a, err := svc.Resolve(r.Context(), id)
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "Unknown account", http.StatusUnauthorized)
				return
			}
			if err != nil {
				log.Error("resolve account failed", zap.String("account_id", id.String()), zap.Error(err))
				http.Error(w, "Account lookup failed", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), a)))
		})
	}
}

type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, validate: validator.New(), log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid account details", http.StatusBadRequest)
		return
	}

	a, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.log.Error("register account failed", zap.Error(err))
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	a, _ := FromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	cur, _ := FromContext(r.Context())
	a, err := h.svc.Upgrade(r.Context(), cur.ID)
	if err != nil {
		h.log.Error("upgrade failed", zap.String("account_id", cur.ID.String()), zap.Error(err))
		http.Error(w, "Upgrade failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

// RegisterRoutes mounts sign-up publicly and the account endpoints behind
// Middleware.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/accounts", h.Register)
	r.Group(func(r chi.Router) {
		r.Use(Middleware(h.svc, h.log))
		r.Get("/me", h.Me)
		r.Post("/upgrade", h.Upgrade)
	})
}
