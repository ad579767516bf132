// Package handlers provides HTTP handlers for the converter API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

// Converter runs one conversion.
type Converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error)
}

// multipartMemory is how much of a form is buffered in memory before parts
// spill to temporary files.
const multipartMemory = 32 << 20

// ConversionHandler handles conversion requests.
type ConversionHandler struct {
	logger    *observability.Logger
	converter Converter
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(logger *observability.Logger, converter Converter) *ConversionHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &ConversionHandler{
		logger:    logger,
		converter: converter,
	}
}

// PairsResponseDTO lists supported conversions.
type PairsResponseDTO struct {
	Pairs []domain.ConversionPair `json:"pairs"`
}

// ListPairs handles GET /api/v1/conversions.
func (h *ConversionHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PairsResponseDTO{Pairs: convert.SupportedPairs()})
}

// Convert handles POST /api/v1/convert. The form carries the document in
// "file", the target kind in "target", and optionally "source" and
// "fallback=text".
func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit), "")
			return
		}
		writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	target, err := domain.ParseTargetKind(r.FormValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "target is required", err.Error())
		return
	}

	var srcKind domain.SourceKind
	if v := r.FormValue("source"); v != "" {
		srcKind, err = domain.ParseSourceKind(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "invalid source", err.Error())
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, string(domain.ErrorTypeValidation), "file is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDomainError(w, domain.IOError("read upload", err))
		return
	}

	fallback, _ := strconv.ParseBool(r.FormValue("fallback_text"))
	if strings.EqualFold(r.FormValue("fallback"), "text") {
		fallback = true
	}

	logger.Info().
		Str("file", header.Filename).
		Str("source", string(srcKind)).
		Str("target", string(target)).
		Int("bytes", len(data)).
		Msg("Conversion requested")

	result, err := h.converter.Convert(ctx, domain.ConversionRequest{
		SourceKind: srcKind,
		TargetKind: target,
		SourceName: header.Filename,
		Data:       data,
		Options:    domain.ConversionOptions{AllowTextFallback: fallback},
	})
	if err != nil {
		logger.Warn().Err(err).Str("file", header.Filename).Msg("Conversion rejected")
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Page-Count", strconv.Itoa(result.PageCount))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		logger.Warn().Err(err).Msg("Failed to write artifact")
	}
}
