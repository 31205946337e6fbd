package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"fileplacer/internal/audit"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
)

// Scanner runs one audit; *audit.Scanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, req audit.Request, observer placement.Observer) (reportstore.StoredReport, error)
}

type Handler struct {
	scanner Scanner
	store   reportstore.Store
	log     *zap.Logger
	origins originPolicy
}

func NewHandler(scanner Scanner, store reportstore.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{scanner: scanner, store: store, log: logger}
}

// NewMux routes the API. Browsers on allowedOrigins may call it
// cross-origin; every other foreign origin gets no CORS headers and cannot
// open the watch socket.
func NewMux(h *Handler, allowedOrigins []string) http.Handler {
	h.origins = newOriginPolicy(allowedOrigins)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/scans", h.HandleScan)
	mux.HandleFunc("GET /v1/scans", h.HandleList)
	mux.HandleFunc("GET /v1/scans/watch", h.HandleWatch)
	mux.HandleFunc("GET /v1/scans/{id}", h.HandleGet)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return CORS(mux, h.origins)
}

// originPolicy is an exact-match set of browser origins.
type originPolicy map[string]struct{}

func newOriginPolicy(origins []string) originPolicy {
	p := make(originPolicy, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			p[strings.ToLower(o)] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	_, ok := p[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// checkOrigin gates websocket upgrades: no Origin header (non-browser
// clients), same host, or an allowed origin.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return p.allows(origin)
}

func CORS(next http.Handler, policy originPolicy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" && policy.allows(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
