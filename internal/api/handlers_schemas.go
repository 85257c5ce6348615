package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/structured-prompt/promptsvc/internal/schema"
	"github.com/structured-prompt/promptsvc/internal/store"
)

type schemaCreateRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description,omitempty"`
	Definition  map[string]any `json:"definition" binding:"required"`
	IsPublic    bool           `json:"is_public,omitempty"`
}

// handleSchemaCreate registers a new schema version after compiling it.
func (s *Server) handleSchemaCreate(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "schema storage is not configured")
		return
	}
	var req schemaCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	if _, err := schema.Compile(req.Definition); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "invalid_schema", err.Error())
		return
	}
	created, err := s.deps.Store.Schemas.Create(c.Request.Context(), req.Name, req.Description, req.Definition, req.IsPublic, currentKeyID(c))
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// handleSchemaList lists schemas visible to the caller, with optional
// search.
func (s *Server) handleSchemaList(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "schema storage is not configured")
		return
	}
	keyID := int64(0)
	if id := currentKeyID(c); id != nil {
		keyID = *id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var (
		schemas []store.Schema
		err     error
	)
	if q := c.Query("q"); q != "" {
		schemas, err = s.deps.Store.Schemas.Search(c.Request.Context(), keyID, q, limit)
	} else {
		schemas, err = s.deps.Store.Schemas.List(c.Request.Context(), keyID, limit, offset)
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if schemas == nil {
		schemas = []store.Schema{}
	}
	c.JSON(http.StatusOK, gin.H{"schemas": schemas})
}

// handleSchemaGet fetches one schema by numeric id or by name.
func (s *Server) handleSchemaGet(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "schema storage is not configured")
		return
	}
	ref := c.Param("id")
	var (
		sc  *store.Schema
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		sc, err = s.deps.Store.Schemas.Get(c.Request.Context(), id)
	} else {
		version, _ := strconv.Atoi(c.Query("version"))
		sc, err = s.deps.Store.Schemas.GetByName(c.Request.Context(), ref, version)
	}
	if errors.Is(err, store.ErrSchemaNotFound) {
		abortWithError(c, http.StatusNotFound, "not_found", "schema not found")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, sc)
}

type schemaUpdateRequest struct {
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// handleSchemaUpdate changes description and visibility of an owned schema.
func (s *Server) handleSchemaUpdate(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "schema storage is not configured")
		return
	}
	keyID := currentKeyID(c)
	if keyID == nil {
		abortWithError(c, http.StatusUnauthorized, "no_credentials", "schema updates require an API key")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "schema id must be numeric")
		return
	}
	var req schemaUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	updated, err := s.deps.Store.Schemas.Update(c.Request.Context(), id, *keyID, req.Description, req.IsPublic)
	if errors.Is(err, store.ErrSchemaNotFound) {
		abortWithError(c, http.StatusNotFound, "not_found", "schema not found or not owned by this key")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleSchemaDelete removes an owned schema.
func (s *Server) handleSchemaDelete(c *gin.Context) {
	if s.deps.Store == nil {
		abortWithError(c, http.StatusServiceUnavailable, "storage_unavailable", "schema storage is not configured")
		return
	}
	keyID := currentKeyID(c)
	if keyID == nil {
		abortWithError(c, http.StatusUnauthorized, "no_credentials", "schema deletion requires an API key")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "schema id must be numeric")
		return
	}
	err = s.deps.Store.Schemas.Delete(c.Request.Context(), id, *keyID)
	if errors.Is(err, store.ErrSchemaNotFound) {
		abortWithError(c, http.StatusNotFound, "not_found", "schema not found or not owned by this key")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
