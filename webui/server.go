// Package webui serves the upload-and-process front end: a landing form, an
// upload endpoint that runs the FIT preprocessing pipeline, and short-lived
// download links for the rewritten files.
package webui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/phuslu/log"

	"github.com/lucasjlepore/fitscrub/fitproc"
)

// uploads larger than this are rejected by the multipart reader
const maxUploadBytes = 32 << 20

// Server is the HTTP front end.
type Server struct {
	store  *downloadStore
	router *mux.Router
}

// NewServer builds a server with all routes configured.
func NewServer() *Server {
	s := &Server{
		store:  newDownloadStore(defaultDownloadTTL),
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleLanding).Methods("GET")
	s.router.HandleFunc("/upload", s.handleUpload).Methods("POST")
	s.router.HandleFunc("/download/{token}", s.handleDownload).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.Use(loggingMiddleware)
}

// Router returns the configured router.
func (s *Server) Router() *mux.Router {
	return s.router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderLanding(w); err != nil {
		log.Error().Err(err).Msg("render landing page")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Failed to read uploaded file: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read uploaded file: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := fitproc.Options{
		RemoveSpeedFields: checkboxOn(r.FormValue("remove_speed_fields")),
		SmoothSpeed:       checkboxOn(r.FormValue("smooth_speed")),
	}

	processed, err := fitproc.Process(data, opts)
	if err != nil {
		status := http.StatusInternalServerError
		var invalidHeader *fitproc.InvalidHeaderError
		var parseErr *fitproc.ParseError
		if errors.As(err, &invalidHeader) || errors.As(err, &parseErr) {
			status = http.StatusBadRequest
		}
		log.Warn().Err(err).Int("upload_bytes", len(data)).Msg("processing failed")
		http.Error(w, err.Error(), status)
		return
	}

	token := s.store.Put(processed.ProcessedBytes)
	event := log.Info().
		Int("records", len(processed.Records)).
		Bool("remove_speed_fields", opts.RemoveSpeedFields).
		Bool("smooth_speed", opts.SmoothSpeed).
		Str("token", token)
	if id := fitproc.ProjectFileID(data); id != nil {
		event = event.Str("file_type", id.Type).Str("manufacturer", id.Manufacturer)
	}
	event.Msg("file processed")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderResults(w, processed, "/download/"+token); err != nil {
		log.Error().Err(err).Msg("render results page")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	data, ok := s.store.Get(token)
	if !ok {
		http.Error(w, "download expired or not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="processed.fit"`)
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// checkboxOn reports whether a form value represents a checked checkbox.
func checkboxOn(v string) bool {
	return v == "true" || v == "on"
}
