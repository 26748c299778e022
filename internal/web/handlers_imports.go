package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/cms/internal/logging"
	"github.com/JonMunkholm/cms/internal/web/templates"
	"github.com/JonMunkholm/cms/internal/workbook"
)

const (
	// multipartOverhead is the allowance for form boundaries and headers.
	multipartOverhead = 1 << 20

	// multipartMemory is kept in memory; larger parts spill to disk.
	multipartMemory = 10 << 20
)

// handleUpload imports the workbook sent in the "file" form field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: limit is %d bytes", workbook.ErrTooLarge, maxSize), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := withRequestMetadata(r.Context(), r)
	logging.FromContext(ctx).Info("upload received", "file", header.Filename, "size", header.Size)

	result, err := s.service.Import(ctx, header.Filename, file)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportSummary(result).Render(ctx, w); err != nil {
			logging.FromContext(ctx).Warn("render import summary", "error", err)
		}
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	runs, err := s.service.ListImports(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRollbackImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, fmt.Errorf("invalid import id %q", chi.URLParam(r, "id")), http.StatusBadRequest)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	result, err := s.service.RollbackImport(ctx, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.RollbackSummary(result).Render(ctx, w); err != nil {
			logging.FromContext(ctx).Warn("render rollback summary", "error", err)
		}
		return
	}
	writeJSON(w, result)
}
