package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/courseboard/internal/catalog"
	"github.com/conorfennell/courseboard/internal/domain"
	"github.com/conorfennell/courseboard/internal/importer"
	"github.com/conorfennell/courseboard/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// Server holds the dependencies for the HTTP server.
type Server struct {
	db        *storage.DB
	catalog   *catalog.Controller
	importer  *importer.Importer
	sources   []string
	router    *http.ServeMux
	templates *template.Template
	validate  *validator.Validate
	log       *slog.Logger
}

// NewServer creates and configures a new server. The HTML pages are driven
// through ctrl; the JSON API talks to db directly. imp may be nil, in which
// case imports are refused.
func NewServer(db *storage.DB, ctrl *catalog.Controller, imp *importer.Importer, sources []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:        db,
		catalog:   ctrl,
		importer:  imp,
		sources:   sources,
		router:    http.NewServeMux(),
		templates: templates,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger.With("component", "web"),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	// HTMX-based routes
	s.router.HandleFunc("GET /{$}", s.handleIndex())
	s.router.HandleFunc("POST /courses", s.handleSubmit())
	s.router.HandleFunc("POST /courses/{id}/edit", s.handleEdit())
	s.router.HandleFunc("POST /cancel", s.handleCancel())
	s.router.HandleFunc("DELETE /courses/{id}", s.handleDelete())
	s.router.HandleFunc("POST /import", s.handleImport())

	// JSON API
	s.router.HandleFunc("GET /api/courses", s.handleAPIList())
	s.router.HandleFunc("GET /api/courses/{id}", s.handleAPIGet())
	s.router.HandleFunc("POST /api/courses", s.handleAPICreate())
	s.router.HandleFunc("PUT /api/courses/{id}", s.handleAPIUpdate())
	s.router.HandleFunc("DELETE /api/courses/{id}", s.handleAPIDelete())
}

// handleIndex reloads the list and renders the full page.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.catalog.Load(r.Context())
		s.render(w, "index", s.catalog.Snapshot())
	}
}

// handleSubmit adds or updates a course from the form and re-renders the
// catalog. A submit that does not take effect is not reported to the user.
func (s *Server) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, _ := s.catalog.SubmitDraft(r.Context(), r.PostFormValue("name"), r.PostFormValue("description"))
		s.render(w, "catalog", view)
	}
}

// handleEdit loads a listed course into the form.
func (s *Server) handleEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		course, found := s.catalog.Course(id)
		if !found {
			http.NotFound(w, r)
			return
		}
		s.catalog.Edit(course)
		s.render(w, "catalog", s.catalog.Snapshot())
	}
}

func (s *Server) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.catalog.Cancel()
		s.render(w, "catalog", s.catalog.Snapshot())
	}
}

// handleDelete deletes a course and re-renders the catalog.
func (s *Server) handleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s.catalog.Delete(r.Context(), id)
		s.render(w, "catalog", s.catalog.Snapshot())
	}
}

// handleImport runs the importer over the configured sources in the
// foreground and re-renders the catalog.
func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.importer == nil || len(s.sources) == 0 {
			http.Error(w, "No import sources configured", http.StatusBadRequest)
			return
		}
		report := s.importer.Run(r.Context(), s.sources)
		s.catalog.Load(r.Context())

		// Render both the result message and the updated catalog
		s.render(w, "import_result", report)
		s.render(w, "catalog", s.catalog.Snapshot())
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("Health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}

func (s *Server) handleAPIList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courses, err := s.db.ListAll(r.Context())
		if err != nil {
			s.log.Error("Error listing courses", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, courses)
	}
}

func (s *Server) handleAPIGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		course, err := s.db.FindByID(r.Context(), id)
		if err != nil {
			s.log.Error("Error finding course", "id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}
		if course == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "course not found"})
			return
		}
		writeJSON(w, http.StatusOK, course)
	}
}

func (s *Server) handleAPICreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course, ok := s.decodeCourse(w, r)
		if !ok {
			return
		}
		course.ID = 0
		if !s.db.Add(r.Context(), course) {
			writeJSON(w, http.StatusInternalServerError, result{OK: false})
			return
		}
		writeJSON(w, http.StatusCreated, result{OK: true})
	}
}

func (s *Server) handleAPIUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		course, ok := s.decodeCourse(w, r)
		if !ok {
			return
		}
		course.ID = id
		if !s.db.Update(r.Context(), course) {
			writeJSON(w, http.StatusNotFound, result{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, result{OK: true})
	}
}

func (s *Server) handleAPIDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if !s.db.DeleteByID(r.Context(), id) {
			writeJSON(w, http.StatusNotFound, result{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, result{OK: true})
	}
}

type result struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// decodeCourse reads and validates a course from the request body. It writes
// the error response itself and reports whether the caller may continue.
func (s *Server) decodeCourse(w http.ResponseWriter, r *http.Request) (domain.Course, bool) {
	var course domain.Course
	if err := json.NewDecoder(r.Body).Decode(&course); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return course, false
	}
	if err := s.validate.Struct(course); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return course, false
	}
	return course, true
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("Error rendering template", "template", name, "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid course ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
