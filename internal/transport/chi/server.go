package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/domain"
	logpkg "github.com/kailas-cloud/mushi/internal/logger"
	healthuc "github.com/kailas-cloud/mushi/internal/usecase/health"
	predictuc "github.com/kailas-cloud/mushi/internal/usecase/predict"
)

const indexMessage = "This is the mushroom classification API!"

// multipartOverhead is allowed on top of MaxUploadBytes for boundaries,
// part headers and other form fields.
const multipartOverhead int64 = 16 << 10

// uploadFields are the accepted multipart field names, in lookup order.
var uploadFields = []string{"file", "img_file"}

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options tune request handling.
type Options struct {
	DefaultTopK int
	// MaxUploadBytes caps the image part, not the whole request body.
	MaxUploadBytes int64
}

// Server serves the prediction API.
type Server struct {
	predict       *predictuc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	predict *predictuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	s := &Server{
		predict: predict,
		health:  health,
		opts:    opts,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedMediaType, http.StatusBadRequest, ErrorCodeInvalidImageType),
		sentinelHandler(domain.ErrInvalidImage, http.StatusBadRequest, ErrorCodeInvalidImage),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrInference, http.StatusInternalServerError, ErrorCodeInferenceFailed),
	}
	return s
}

// Routes registers the API on r. predictMiddlewares wrap POST /predict only.
func (s *Server) Routes(r chi.Router, predictMiddlewares ...func(http.Handler) http.Handler) {
	r.Get("/", s.Index)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.With(predictMiddlewares...).Post("/predict", s.Predict)
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{Message: indexMessage})
}

// Predict handles POST /predict.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	var k *int
	if err := runtime.BindQueryParameter("form", true, false, "k", r.URL.Query(), &k); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter k: must be an integer")
		return
	}
	topK := s.opts.DefaultTopK
	if k != nil {
		if *k < 1 {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid query parameter k: must be at least 1")
			return
		}
		topK = *k
	}

	bodyLimit := s.opts.MaxUploadBytes + multipartOverhead
	if r.ContentLength > bodyLimit {
		s.uploadTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(bodyLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadTooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Request must be a multipart/form-data upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := formFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest,
			"No image file provided. Use 'file' as the form field name")
		return
	}
	defer file.Close()

	if header.Size > s.opts.MaxUploadBytes {
		s.uploadTooLarge(w)
		return
	}

	if !allowedImageType(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidImageType,
			"Invalid image type. Please submit a .jpeg or .png image.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Failed to read uploaded file")
		return
	}

	ctx := logpkg.With(r.Context(), zap.String("filename", header.Filename), zap.Int("k", topK))
	logpkg.FromContext(ctx).Debug("Received image", zap.Int64("size", header.Size))

	res, err := s.predict.Predict(ctx, data, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if res.Cached {
		w.Header().Set("X-Score-Cache", "hit")
	} else {
		w.Header().Set("X-Score-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, PredictionResponse(res.Ranking))
}

func (s *Server) uploadTooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeUploadTooLarge,
		fmt.Sprintf("Image exceeds %d bytes", s.opts.MaxUploadBytes))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		f, h, err := r.FormFile(field)
		if err == nil {
			return f, h, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func allowedImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := allowedImageTypes[mediaType]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnsupportedMediaType,
		domain.ErrInvalidImage,
		domain.ErrRateLimited,
		domain.ErrInference,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps err to a response. Unmatched errors, including ranking
// failures (ErrInvalidInput), become 500.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
