package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skelly-dev/sigreg/internal/extract"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

const (
	fieldSourceFile   = "source_file"
	fieldHexSignature = "hex_signature"
)

func (s *Server) health(c *gin.Context) {
	count, err := s.reg.Count(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Signatures: count})
}

func (s *Server) createSignature(c *gin.Context) {
	var req CreateSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, FieldErrors{registry.FieldTextSignature: {"This field is required."}})
		return
	}
	if strings.TrimSpace(req.TextSignature) == "" {
		c.JSON(http.StatusBadRequest, FieldErrors{registry.FieldTextSignature: {"This field may not be blank."}})
		return
	}

	sig, created, err := s.reg.ImportOne(c.Request.Context(), req.TextSignature)
	if err != nil {
		var invalid *registry.InvalidSignatureError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, FieldErrors{invalid.Field: {string(invalid.Reason)}})
			return
		}
		s.internalError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, newSignatureResponse(sig))
}

// listSignatures filters by hex_signature, text_signature or a free-text q,
// in that order of precedence, and lists everything otherwise.
func (s *Server) listSignatures(c *gin.Context) {
	ctx := c.Request.Context()
	offset, limit, ok := s.paging(c)
	if !ok {
		return
	}

	var (
		matches []registry.Signature
		err     error
	)
	switch {
	case c.Query(fieldHexSignature) != "":
		sel, parseErr := selector.ParseHex(c.Query(fieldHexSignature))
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, FieldErrors{fieldHexSignature: {"Enter a valid 4-byte hex signature."}})
			return
		}
		matches, err = s.reg.FindBySelector(ctx, sel)

	case c.Query(registry.FieldTextSignature) != "":
		sig, found, lookupErr := s.reg.Lookup(ctx, c.Query(registry.FieldTextSignature))
		switch {
		case errors.Is(lookupErr, registry.ErrInvalidSignature):
			// unparseable text matches nothing
		case lookupErr != nil:
			err = lookupErr
		case found:
			matches = []registry.Signature{sig}
		}

	case c.Query("q") != "":
		results, searchErr := s.searcher.Search(ctx, c.Query("q"), maxPageSize)
		err = searchErr
		for _, r := range results {
			matches = append(matches, registry.Signature{ID: r.ID, TextSignature: r.TextSignature})
		}

	default:
		count, countErr := s.reg.Count(ctx)
		if countErr != nil {
			s.internalError(c, countErr)
			return
		}
		page, listErr := s.reg.List(ctx, registry.ListOptions{Offset: offset, Limit: limit})
		if listErr != nil {
			s.internalError(c, listErr)
			return
		}
		c.JSON(http.StatusOK, toListResponse(count, page))
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	count := len(matches)
	if offset >= len(matches) {
		matches = nil
	} else {
		matches = matches[offset:]
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	c.JSON(http.StatusOK, toListResponse(count, matches))
}

func (s *Server) paging(c *gin.Context) (int, int, bool) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, FieldErrors{"offset": {"A non-negative integer is required."}})
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, FieldErrors{"limit": {"A positive integer is required."}})
		return 0, 0, false
	}
	return offset, min(limit, maxPageSize), true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func toListResponse(count int, sigs []registry.Signature) ListResponse {
	results := make([]SignatureResponse, 0, len(sigs))
	for _, sig := range sigs {
		results = append(results, newSignatureResponse(sig))
	}
	return ListResponse{Count: count, Results: results}
}

func (s *Server) importSolidity(c *gin.Context) {
	document, ok := s.readUpload(c)
	if !ok {
		return
	}
	result, err := s.importer.ImportSource(c.Request.Context(), document)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) importABI(c *gin.Context) {
	document, ok := s.readUpload(c)
	if !ok {
		return
	}
	result, err := s.importer.ImportABI(c.Request.Context(), document)
	if errors.Is(err, extract.ErrInvalidABI) {
		c.JSON(http.StatusBadRequest, FieldErrors{fieldSourceFile: {err.Error()}})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readUpload returns the contents of the multipart source_file field,
// writing a 400 response when it is missing or too large.
func (s *Server) readUpload(c *gin.Context) ([]byte, bool) {
	if c.Request.ContentLength > s.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, FieldErrors{fieldSourceFile: {"The submitted file is too large."}})
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes)
	header, err := c.FormFile(fieldSourceFile)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, FieldErrors{fieldSourceFile: {"The submitted file is too large."}})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, FieldErrors{fieldSourceFile: {"No file was submitted."}})
		return nil, false
	}
	f, err := header.Open()
	if err != nil {
		s.internalError(c, err)
		return nil, false
	}
	defer f.Close()

	document, err := io.ReadAll(f)
	if err != nil {
		s.internalError(c, err)
		return nil, false
	}
	return document, true
}

func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
}
