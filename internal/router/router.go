package router

import (
	"net/http"
	"time"

	"github.com/Yusufzhafir/go-dexmatcher/internal/router/middleware"
	"github.com/Yusufzhafir/go-dexmatcher/internal/usecase/order"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/rs/zerolog"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func logging(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.n).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

// Cors wraps the mux when starting the server:
// http.ListenAndServe(addr, Cors(mux)).
func Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			reqHdrs := r.Header.Get("Access-Control-Request-Headers")
			if reqHdrs == "" {
				reqHdrs = "Content-Type, Authorization"
			}
			w.Header().Set("Access-Control-Allow-Headers", reqHdrs)

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" {
				reqMethod = "GET, POST, DELETE, OPTIONS"
			}
			w.Header().Set("Access-Control-Allow-Methods", reqMethod)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// BindRouterOpts wires the HTTP surface.
type BindRouterOpts struct {
	ServerRouter *http.ServeMux
	Drivers      map[model.AssetPair]*order.Driver
	TokenMaker   *middleware.JWTMaker
	Log          zerolog.Logger
}

// BindRouter attaches all routes. Mutating endpoints sit behind the bearer
// token middleware; reads are open.
func BindRouter(opts BindRouterOpts) {
	auth := middleware.AuthMiddleware(opts.TokenMaker)
	logged := logging(opts.Log)
	orderRouter := NewOrderRouter(opts.Drivers)

	opts.ServerRouter.Handle("POST /api/v1/order",
		logged(auth(http.HandlerFunc(orderRouter.Submit))))
	opts.ServerRouter.Handle("DELETE /api/v1/order/{amountAsset}/{priceAsset}/{id}",
		logged(auth(http.HandlerFunc(orderRouter.Cancel))))
	opts.ServerRouter.Handle("GET /api/v1/order/{amountAsset}/{priceAsset}/{id}",
		logged(http.HandlerFunc(orderRouter.Status)))
	opts.ServerRouter.Handle("GET /api/v1/orderbook/{amountAsset}/{priceAsset}",
		logged(http.HandlerFunc(orderRouter.Depth)))

	opts.ServerRouter.Handle("GET /healthz", logged(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": 200,
			"health": "healthy",
		})
	})))
}
