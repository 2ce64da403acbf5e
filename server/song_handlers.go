package server

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"MusicPro/config"
	"MusicPro/core/library"
	"MusicPro/logger"
	"MusicPro/repository"
	"MusicPro/session"

	"github.com/gorilla/mux"
)

// Upload boundary limits, matching what the web UI enforces client-side.
const (
	maxAudioSize      = 50 << 20  // 50 MB per audio file
	maxCoverSize      = 5 << 20   // 5 MB per cover image
	maxLyricsSize     = 500 << 10 // 500 KB per lyrics file
	maxSongsPerUpload = 20
)

// APIHandler carries the wired services for all API endpoints. userRepo
// and sessions stay nil under the token strategy.
type APIHandler struct {
	svc      *library.Service
	userRepo repository.UserRepository
	sessions session.Store
	cfg      *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(svc *library.Service, userRepo repository.UserRepository, sessions session.Store, cfg *config.Config) *APIHandler {
	return &APIHandler{
		svc:      svc,
		userRepo: userRepo,
		sessions: sessions,
		cfg:      cfg,
	}
}

// UploadSongsHandler accepts a multipart batch of audio files. Each file
// is committed independently; a bad file does not roll back the others.
func (h *APIHandler) UploadSongsHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("processing upload request",
		logger.String("remoteAddr", r.RemoteAddr),
		logger.Int64("contentLength", r.ContentLength))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("failed to parse upload form", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "failed to parse upload form")
		return
	}

	headers := r.MultipartForm.File["songs"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no audio files in request")
		return
	}
	if len(headers) > maxSongsPerUpload {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many files, maximum is %d per upload", maxSongsPerUpload))
		return
	}

	creds := credentials(r)
	files := make([]*library.UploadedFile, 0, len(headers))
	failures := make([]map[string]string, 0)

	for _, header := range headers {
		// Boundary validation: MIME prefix and size ceiling. The
		// orchestrator trusts what passes here.
		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "audio/") {
			failures = append(failures, map[string]string{
				"name": header.Filename, "reason": "only audio files are allowed",
			})
			continue
		}
		if header.Size > maxAudioSize {
			failures = append(failures, map[string]string{
				"name": header.Filename, "reason": fmt.Sprintf("file too large, maximum is %d MB", maxAudioSize>>20),
			})
			continue
		}

		src, err := header.Open()
		if err != nil {
			failures = append(failures, map[string]string{
				"name": header.Filename, "reason": "failed to read uploaded file",
			})
			continue
		}

		uploaded, err := h.svc.Upload(r.Context(), creds, library.UploadInput{
			OriginalName: header.Filename,
			Size:         header.Size,
			ContentType:  contentType,
			Data:         src,
		})
		src.Close()
		if err != nil {
			logger.Error("upload failed",
				logger.String("originalName", header.Filename),
				logger.ErrorField(err))
			failures = append(failures, map[string]string{
				"name": header.Filename, "reason": "upload failed",
			})
			continue
		}
		files = append(files, uploaded)
	}

	if len(files) == 0 && len(failures) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok": false, "error": failures[0]["reason"], "failures": failures,
		})
		return
	}

	resp := map[string]any{"ok": true, "files": files}
	if len(failures) > 0 {
		resp["failures"] = failures
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSongsHandler is public: everyone sees every record, with secret
// hashes stripped and the caller's own files flagged.
func (h *APIHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context(), credentials(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "files": views})
}

// DeleteSongHandler removes a file when the request proves ownership.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	filename := path.Base(mux.Vars(r)["filename"])
	if filename == "" || filename == "." || filename == "/" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	if err := h.svc.Delete(r.Context(), credentials(r), filename); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removed": filename})
}
