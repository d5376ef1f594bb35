package web

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canonical/pdfref/internal/lookup"
	"github.com/canonical/pdfref/internal/registry"
	"github.com/canonical/pdfref/internal/report"
	"github.com/canonical/pdfref/internal/search"
)

//go:embed templates/base.html templates/index.html templates/404.html static/pdfref.css
var webAssets embed.FS

const (
	reportCacheSize = 64
	reportTTL       = time.Hour
)

type Server struct {
	logger   *slog.Logger
	engine   lookup.Engine
	registry *registry.Registry
	catalog  *search.Catalog
	gatherer prometheus.Gatherer
	reports  *expirable.LRU[string, []byte]
	index    *template.Template
	notFound *template.Template
}

type indexView struct {
	Title       string
	Token       string
	Arch        string
	Arches      []string
	Message     string
	Suggestions []string
}

// NewServer serves lookups run by engine. Report pages link every page to
// /pdf on this server, which only serves manuals the registry loaded. A nil
// catalog disables /api/headings.
func NewServer(engine *lookup.Engine, reg *registry.Registry, catalog *search.Catalog, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	index := template.Must(template.ParseFS(webAssets, "templates/base.html", "templates/index.html"))
	notFound := template.Must(template.ParseFS(webAssets, "templates/base.html", "templates/404.html"))

	e := *engine
	e.Linker = pdfLinker{}
	e.Presenter = nil

	return &Server{
		logger:   logger,
		engine:   e,
		registry: reg,
		catalog:  catalog,
		gatherer: gatherer,
		reports:  expirable.NewLRU[string, []byte](reportCacheSize, nil, reportTTL),
		index:    index,
		notFound: notFound,
	}
}

// Handler returns the full route table wrapped in request logging and gzip.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/peek", s.handlePeek)
	mux.HandleFunc("/api/open", s.handleOpen)
	mux.HandleFunc("/api/headings", s.handleHeadings)
	mux.HandleFunc("/search", s.handleSearchPage)
	mux.HandleFunc("/reports/", s.handleReport)
	mux.HandleFunc("/pdf", s.handlePDF)
	mux.HandleFunc("/", s.handleIndex)
	staticFS, _ := fs.Sub(webAssets, "static")
	staticETag := computeStaticETag()
	mux.Handle("/static/", staticCacheHandler(staticETag,
		http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
	))
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.logRequests(gzipHandler(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// pdfLinker points report pages at the /pdf route.
type pdfLinker struct{}

func (pdfLinker) LinkFor(manualPath string, page int) (string, error) {
	u := url.URL{
		Path:     "/pdf",
		RawQuery: url.Values{"path": {manualPath}}.Encode(),
		Fragment: fmt.Sprintf("page=%d", page),
	}
	return u.String(), nil
}

func queryFrom(r *http.Request, action lookup.Action) lookup.Query {
	return lookup.Query{
		Token:  strings.TrimSpace(r.URL.Query().Get("token")),
		Action: action,
		Arch:   strings.TrimSpace(r.URL.Query().Get("arch")),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		s.renderNotFound(w, r)
		return
	}
	s.renderIndex(w, http.StatusOK, indexView{Title: "pdfref", Arch: s.engine.Arch})
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, view indexView) {
	view.Arches = s.registry.Keys()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.index.ExecuteTemplate(w, "base", view); err != nil {
		s.logger.Error("render error", "template", "index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"arches": s.registry.Keys(),
	}
	if s.catalog != nil {
		n, err := s.catalog.Count(r.Context())
		if err != nil {
			s.logger.Warn("count catalog headings", "error", err)
		} else {
			body["headings"] = n
		}
	}
	if s.engine.Renderer != nil {
		body["cached_pages"] = s.engine.Renderer.Len()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r, lookup.Peek)
	messages, err := s.engine.PeekMessages(r.Context(), q)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	resp := map[string]any{"messages": messages}
	if len(messages) == 1 && messages[0] == lookup.NoResults {
		resp["suggestions"] = s.suggest(r.Context(), q)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	uris, err := s.engine.OpenURIs(r.Context(), queryFrom(r, lookup.Open))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uris": uris})
}

func (s *Server) handleHeadings(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "heading catalog unavailable",
		})
		return
	}

	query := r.URL.Query().Get("q")
	arch := r.URL.Query().Get("arch")
	if arch != "" {
		arch = registry.NormalizeArch(arch)
	}
	limit := parseIntQuery(r, "limit", 50)

	results, err := s.catalog.Search(r.Context(), query, arch, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r, lookup.Search)
	view := indexView{Title: "pdfref", Token: q.Token, Arch: q.Arch}
	if view.Arch == "" {
		view.Arch = s.engine.Arch
	}
	if q.Token == "" {
		s.renderIndex(w, http.StatusOK, view)
		return
	}

	collections, err := s.engine.Collections(r.Context(), q)
	if err != nil {
		view.Message = err.Error()
		s.renderIndex(w, http.StatusBadRequest, view)
		return
	}
	if len(collections) == 0 {
		view.Message = lookup.NoResults
		view.Suggestions = s.suggest(r.Context(), q)
		s.renderIndex(w, http.StatusOK, view)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteHTML(&buf, q.Token, collections); err != nil {
		s.logger.Error("render error", "template", "report", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	id := uuid.NewString()
	s.reports.Add(id, buf.Bytes())
	pages := 0
	for _, c := range collections {
		pages += c.PageCount()
	}
	s.logger.Info("report stored", "id", id, "token", q.Token, "manuals", len(collections), "pages", pages)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Location", "/reports/"+id)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	body, ok := s.reports.Get(id)
	if !ok {
		s.renderNotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" || !s.registry.Known(path) {
		s.renderNotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
}

// suggest lists similar architectures when q's architecture has no manuals.
func (s *Server) suggest(ctx context.Context, q lookup.Query) []string {
	arch := q.Arch
	if arch == "" {
		arch = s.engine.Arch
	}
	if arch == "" || len(s.engine.Manuals.Manuals(ctx, arch)) > 0 {
		return nil
	}
	return s.registry.Suggest(arch)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lookup.ErrEmptyToken):
		status = http.StatusBadRequest
	case errors.Is(err, lookup.ErrTooManyMatches):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := s.notFound.ExecuteTemplate(w, "base", indexView{Title: "Not found"}); err != nil {
		s.logger.Error("render error", "template", "404", "error", err)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher, delegating to the underlying writer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", filepath.Clean(r.URL.Path),
			"token", r.URL.Query().Get("token"),
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

func computeStaticETag() string {
	h := sha256.New()
	entries, _ := webAssets.ReadDir("static")
	for _, entry := range entries {
		data, _ := webAssets.ReadFile("static/" + entry.Name())
		h.Write([]byte(entry.Name()))
		h.Write(data)
	}
	return `"` + hex.EncodeToString(h.Sum(nil))[:16] + `"`
}

func staticCacheHandler(etag string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("ETag", etag)

		if match := r.Header.Get("If-None-Match"); match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// gzipResponseWriter compresses text and JSON responses. Rendered reports
// are mostly base64 images and shrink well; PDFs are passed through.
type gzipResponseWriter struct {
	http.ResponseWriter
	gw      *gzip.Writer
	sniffed bool
}

func (grw *gzipResponseWriter) WriteHeader(code int) {
	if code != http.StatusNotModified {
		grw.sniff()
	}
	grw.ResponseWriter.WriteHeader(code)
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	grw.sniff()
	if grw.gw != nil {
		return grw.gw.Write(b)
	}
	return grw.ResponseWriter.Write(b)
}

func (grw *gzipResponseWriter) sniff() {
	if grw.sniffed {
		return
	}
	grw.sniffed = true

	ct := grw.ResponseWriter.Header().Get("Content-Type")
	if strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") {
		grw.ResponseWriter.Header().Set("Content-Encoding", "gzip")
		grw.ResponseWriter.Header().Del("Content-Length")
	} else {
		grw.gw = nil
	}
}

func (grw *gzipResponseWriter) Flush() {
	if grw.gw != nil {
		_ = grw.gw.Flush()
	}
	if f, ok := grw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func gzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gw := gzip.NewWriter(w)
		grw := &gzipResponseWriter{ResponseWriter: w, gw: gw}
		next.ServeHTTP(grw, r)
		if grw.gw != nil {
			_ = grw.gw.Close()
		}
	})
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
