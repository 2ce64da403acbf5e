package server

import (
	"io"
	"net/http"
	"path"
	"strings"

	"MusicPro/core/library"
	"MusicPro/logger"

	"github.com/gorilla/mux"
)

// UploadCoverHandler attaches a cover image to an existing upload.
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxCoverSize + (1 << 20)); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse upload form")
		return
	}

	audioFilename := path.Base(r.FormValue("filename"))
	if audioFilename == "" || audioFilename == "." {
		writeError(w, http.StatusBadRequest, "audio filename and image file required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio filename and image file required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "only image files are allowed")
		return
	}
	if header.Size > maxCoverSize {
		writeError(w, http.StatusBadRequest, "cover image too large, maximum is 5 MB")
		return
	}

	rec, err := h.svc.AttachCover(r.Context(), audioFilename, library.UploadInput{
		OriginalName: header.Filename,
		Size:         header.Size,
		ContentType:  contentType,
		Data:         file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Info("cover attached", logger.String("filename", audioFilename))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "file": rec.View()})
}

// UploadLyricsHandler attaches lyrics to an existing upload, from either
// an uploaded .lrc/.txt file or a raw text field.
func (h *APIHandler) UploadLyricsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxLyricsSize + (1 << 20)); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse upload form")
		return
	}

	audioFilename := path.Base(r.FormValue("filename"))
	if audioFilename == "" || audioFilename == "." {
		writeError(w, http.StatusBadRequest, "audio filename required")
		return
	}

	var ext string
	var content []byte

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		ext = strings.ToLower(path.Ext(header.Filename))
		if ext != ".lrc" && ext != ".txt" {
			writeError(w, http.StatusBadRequest, "only .lrc and .txt files are allowed")
			return
		}
		if header.Size > maxLyricsSize {
			writeError(w, http.StatusBadRequest, "lyrics file too large, maximum is 500 KB")
			return
		}
		content, err = io.ReadAll(io.LimitReader(file, maxLyricsSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read lyrics file")
			return
		}
	} else {
		text := r.FormValue("lyrics")
		if text == "" {
			writeError(w, http.StatusBadRequest, "lyrics file or text required")
			return
		}
		ext = ".txt"
		content = []byte(text)
	}

	rec, err := h.svc.AttachLyrics(r.Context(), audioFilename, ext, content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Info("lyrics attached", logger.String("filename", audioFilename))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "file": rec.View()})
}

// GetLyricsHandler returns lyrics content for a lyrics filename.
func (h *APIHandler) GetLyricsHandler(w http.ResponseWriter, r *http.Request) {
	filename := path.Base(mux.Vars(r)["filename"])
	typ, content, err := h.svc.Lyrics(r.Context(), filename)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "type": typ, "content": content})
}
