package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/ledger/internal/core"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the configured file size.
const multipartOverhead = 64 << 10

// formFile extracts the "file" part of a multipart upload. On failure it
// returns the status the caller should respond with.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, string, int, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, "", http.StatusBadRequest, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", http.StatusBadRequest, fmt.Errorf("%w: %v", errNoFile, err)
	}
	if header.Filename == "" {
		file.Close()
		return nil, "", http.StatusBadRequest, errNoFile
	}
	return file, header.Filename, http.StatusOK, nil
}

// handleUpload imports an uploaded sheet all-or-nothing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, name, status, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, status)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ctx := withRequestMetadata(r.Context(), r)
	receipt, err := s.service.ImportFile(ctx, name, file)
	if err != nil {
		resp := newErrorResponse(err)
		var ie *core.ImportError
		if errors.As(err, &ie) {
			resp.ImportID = receipt.ImportID.String()
		}
		writeErrorResponse(w, r, err, resp, importErrorStatus(err))
		return
	}

	writeJSON(w, fmt.Sprintf("imported %d records", receipt.Inserted), receipt)
}

// handleValidate checks an uploaded sheet without importing it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	file, name, status, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, status)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	report, err := s.service.ValidateFile(r.Context(), name, file)
	if err != nil {
		respondError(w, r, err, importErrorStatus(err))
		return
	}

	msg := "sheet is valid"
	if !report.Valid() {
		msg = "sheet is invalid"
	}
	writeJSON(w, msg, report)
}
