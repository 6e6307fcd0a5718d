// Package serverutil has the pieces shared by HTTP handlers: JSON
// responses, request decoding, error rendering and access logging.
package serverutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	rerrs "github.com/jdholdren/reader/internal/errors"
	"github.com/jdholdren/reader/logger"
)

// Largest request body a handler will decode.
const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	byts, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return WriteRawJSON(w, status, byts)
}

// WriteRawJSON writes a body that is already encoded.
func WriteRawJSON(w http.ResponseWriter, status int, byts []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(byts); err != nil {
		return fmt.Errorf("error writing response: %s", err)
	}

	return nil
}

// Validator is a request body that can check itself.
type Validator interface {
	Validate() error
}

// DecodeValid decodes a request body and then validates it.
//
// Decoding failures come back as a 400. Validation errors are returned as
// the validator produced them.
func DecodeValid[V Validator](r io.Reader) (V, error) {
	var v V
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(&v); err != nil {
		return v, rerrs.E(fmt.Errorf("error decoding request: %w", err), http.StatusBadRequest)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}

	return v, nil
}

// AccessLogMiddleware tags each request's context with a request id and
// logs one line once it is answered.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.Ctx(r.Context(), slog.String("request_id", uuid.NewString()))
		r = r.WithContext(ctx)

		start := time.Now()
		writer := &respCodeWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(writer, r)

		level := slog.LevelInfo
		if writer.code >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", writer.code,
			"bytes", writer.written,
			"duration", time.Since(start),
		)
	})
}

// Keeps the status code and size of a response for the access log.
type respCodeWriter struct {
	http.ResponseWriter
	code    int
	written int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *respCodeWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	sErr, ok := rerrs.As(err)
	if !ok {
		slog.ErrorContext(r.Context(), "unstructured handler error", "error", err)
	}

	if err := WriteJSON(w, sErr.Status, sErr); err != nil {
		slog.ErrorContext(r.Context(), "error writing error response", "error", err)
	}
}

// ErrRouter is a mux router that takes handlers returning errors.
type ErrRouter struct {
	*mux.Router
}

func (r ErrRouter) HandleFuncE(path string, f HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}
