package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/middleware"
	"github.com/13507-IN/HorizonPay/shared/pkg/auth"
	"github.com/13507-IN/HorizonPay/shared/pkg/helpers"
	"github.com/13507-IN/HorizonPay/shared/pkg/logger"
	"github.com/13507-IN/HorizonPay/shared/pkg/metrics"
	"github.com/13507-IN/HorizonPay/shared/pkg/ratelimiter"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Remittance     *RemittanceHandler
	Health         http.Handler
	TokenValidator auth.TokenValidator
	SendLimiter    *ratelimiter.MapLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         logrus.FieldLogger
}

// NewRouter wires routes and middleware
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	if cfg.Health != nil {
		r.Handle("/health", cfg.Health).Methods(http.MethodGet)
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	h := cfg.Remittance
	r.HandleFunc("/api/assets", h.ListAssets).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.HTTPMiddleware(cfg.TokenValidator))

	api.HandleFunc("/transactions/build", h.BuildTransfer).Methods(http.MethodPost)
	api.Handle("/transactions/send",
		middleware.ThrottleMiddleware(cfg.SendLimiter, nil)(http.HandlerFunc(h.Send)),
	).Methods(http.MethodPost)
	api.HandleFunc("/transactions/history", h.History).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{txId}", h.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{txId}/status", h.RefreshStatus).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{address}/balance", h.Balance).Methods(http.MethodGet)
	api.HandleFunc("/users/stats", h.Stats).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Use(metrics.HTTPMiddleware(cfg.Metrics))
	}
	if cfg.Logger != nil {
		r.Use(logger.HTTPMiddleware(cfg.Logger))
	}

	return middleware.CORSMiddleware(middleware.RequestIDMiddleware(helpers.NewIDGenerator())(r))
}
