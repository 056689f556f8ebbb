package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
	"github.com/couchcryptid/crop-yield-dashboard/internal/pipeline"
	"github.com/couchcryptid/crop-yield-dashboard/internal/render"
)

// Error kinds for requests rejected before analysis.
const (
	KindBadRequest     = "bad_request"
	KindUploadTooLarge = "upload_too_large"
	KindNotFound       = "not_found"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	formMemory      = 8 << 20
)

// ReportService generates and looks up reports.
type ReportService interface {
	sharedobs.ReadinessChecker
	Generate(ctx context.Context, upload []byte, policy domain.InvalidPolicy) (*pipeline.Result, error)
	Lookup(id string) (*pipeline.Result, bool)
}

// Options tunes upload handling.
type Options struct {
	MaxUploadBytes int64
	DefaultPolicy  domain.InvalidPolicy
}

// Server exposes the dashboard, the JSON API, and the health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	reports    ReportService
	pages      *render.HTML
	opts       Options
	logger     *slog.Logger
}

// NewServer wires every route onto a fresh mux.
func NewServer(addr string, reports ReportService, pages *render.HTML, opts Options, logger *slog.Logger) *Server {
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = domain.PolicyAbort
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           withRequestID(mux, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		reports: reports,
		pages:   pages,
		opts:    opts,
		logger:  logger,
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /reports", s.handleUpload)
	mux.HandleFunc("GET /reports/{id}", s.handleReport)
	mux.HandleFunc("GET /reports/{id}/heatmap.png", s.handleHeatmap)
	mux.HandleFunc("GET /reports/{id}/workbook.xlsx", s.handleWorkbook)
	mux.HandleFunc("POST /api/v1/reports", s.handleAPIUpload)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reports))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, render.NewPage(s.opts.DefaultPolicy))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	page := render.NewPage(s.opts.DefaultPolicy)

	upload, policy, err := s.readUpload(w, r)
	if err != nil {
		page.Policy = policy
		s.renderPage(w, r, statusFor(err), withError(page, err))
		return
	}
	page.Policy = policy

	res, err := s.reports.Generate(r.Context(), upload, policy)
	if err != nil {
		s.logFailure(r, err)
		s.renderPage(w, r, statusFor(err), withError(page, err))
		return
	}

	w.Header().Set("Content-Location", "/reports/"+res.Report.ID)
	s.renderPage(w, r, http.StatusOK, page.WithReport(res.Report, res.Heatmap))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	page := render.NewPage(s.opts.DefaultPolicy).WithReport(res.Report, res.Heatmap)
	s.renderPage(w, r, http.StatusOK, page)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(res.Heatmap) //nolint:errcheck // client went away
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	out, err := render.Workbook(res.Report, res.Heatmap)
	if err != nil {
		s.logFailure(r, err)
		http.Error(w, "workbook export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="crop-yield-%s.xlsx"`, res.Report.ID))
	w.Write(out) //nolint:errcheck // client went away
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	upload, policy, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.reports.Generate(r.Context(), upload, policy)
	if err != nil {
		s.logFailure(r, err)
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/reports/"+res.Report.ID)
	sharedobs.WriteJSON(w, http.StatusCreated, res.Report)
}

// lookup resolves the {id} path value, answering 404 itself on a miss.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	id := r.PathValue("id")
	res, ok := s.reports.Lookup(id)
	if !ok {
		err := &requestError{kind: KindNotFound, msg: fmt.Sprintf("report %q not found or expired; upload the file again", id)}
		s.renderPage(w, r, http.StatusNotFound, withError(render.NewPage(s.opts.DefaultPolicy), err))
		return nil, false
	}
	return res, true
}

// readUpload pulls the file and policy out of a multipart form. The
// returned policy is the default when the form carries none.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, domain.InvalidPolicy, error) {
	policy := s.opts.DefaultPolicy
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(formMemory); err != nil {
		return nil, policy, badRequest(err, "expected a multipart form with a CSV file")
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	if raw := r.FormValue("policy"); raw != "" {
		p, err := domain.ParseInvalidPolicy(raw)
		if err != nil {
			return nil, policy, badRequest(err, err.Error())
		}
		policy = p
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, policy, badRequest(err, "no file uploaded; choose a CSV file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, policy, badRequest(err, "upload could not be read")
	}
	return data, policy, nil
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page render.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.Render(w, page); err != nil {
		requestLogger(r.Context(), s.logger).Error("render page", "error", err)
	}
}

func (s *Server) logFailure(r *http.Request, err error) {
	log := requestLogger(r.Context(), s.logger)
	if domain.IsUserError(err) {
		log.Info("upload rejected", "kind", domain.ErrorKind(err), "error", err)
		return
	}
	log.Error("upload failed", "error", err)
}

// requestError is a rejection decided by the HTTP layer itself.
type requestError struct {
	kind string
	msg  string
	err  error
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{
			kind: KindUploadTooLarge,
			msg:  fmt.Sprintf("upload exceeds the %d byte limit", tooLarge.Limit),
			err:  err,
		}
	}
	return &requestError{kind: KindBadRequest, msg: msg, err: err}
}

func errorKind(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.kind
	}
	return domain.ErrorKind(err)
}

func statusFor(err error) int {
	switch errorKind(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	}
	if domain.IsUserError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	sharedobs.WriteJSON(w, statusFor(err), map[string]string{
		"error":   errorKind(err),
		"message": publicMessage(err),
	})
}

func withError(page render.Page, err error) render.Page {
	return page.WithError(errorKind(err), publicMessage(err))
}

// publicMessage is the error text shown to clients. Internal failures are
// replaced by a fixed message; their detail stays in the server log.
func publicMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "report generation failed; see server logs"
	}
	return err.Error()
}
