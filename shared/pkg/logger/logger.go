package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Logger wraps a logrus entry that carries the service name on every line
type Logger struct {
	*logrus.Entry
}

// NewLogger creates a JSON logger for the given service. The level is read from LOG_LEVEL.
func NewLogger(serviceName string) *Logger {
	return NewLoggerWithOutput(serviceName, os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewLoggerWithOutput creates a logger writing to out with an explicit level
func NewLoggerWithOutput(serviceName, level string, out io.Writer) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)
	log.SetLevel(parseLevel(level))

	return &Logger{Entry: log.WithField("service", serviceName)}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithRequestID adds request ID to logger
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithTxID adds the ledger transaction id to logger
func (l *Logger) WithTxID(txID string) *logrus.Entry {
	return l.WithField("tx_id", txID)
}

// UnaryServerInterceptor returns a new unary server interceptor for logging
func UnaryServerInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		logger.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"type":   "unary",
		}).Debug("gRPC request")

		resp, err := handler(ctx, req)

		if err != nil {
			logger.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"error":  err.Error(),
			}).Error("gRPC request failed")
		} else {
			logger.WithField("method", info.FullMethod).Debug("gRPC request completed")
		}

		return resp, err
	}
}

// StreamServerInterceptor returns a new stream server interceptor for logging
func StreamServerInterceptor(logger logrus.FieldLogger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		logger.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"type":   "stream",
		}).Debug("gRPC stream started")

		err := handler(srv, stream)

		if err != nil {
			logger.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"error":  err.Error(),
			}).Error("gRPC stream failed")
		} else {
			logger.WithField("method", info.FullMethod).Debug("gRPC stream completed")
		}

		return err
	}
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware logs one line per request with method, path, status and duration
func HTTPMiddleware(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
				entry = entry.WithField("request_id", requestID)
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				entry.Error("HTTP request failed")
			case rec.status >= http.StatusBadRequest:
				entry.Warn("HTTP request rejected")
			default:
				entry.Info("HTTP request")
			}
		})
	}
}
