package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/toon"
)

type toonEncodeRequest struct {
	Data         map[string]any `json:"data" binding:"required"`
	Delimiter    string         `json:"delimiter,omitempty"`
	LengthMarker bool           `json:"length_marker,omitempty"`
}

// handleTOONEncode converts a JSON document to TOON and reports the token
// savings.
func (s *Server) handleTOONEncode(c *gin.Context) {
	var req toonEncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	encoded := toon.Encode(req.Data, toon.EncodeOptions{Delimiter: req.Delimiter, LengthMarker: req.LengthMarker})

	jsonRaw, _ := json.Marshal(req.Data)
	jsonTokens := provider.CountTokens("", string(jsonRaw))
	toonTokens := provider.CountTokens("", encoded)

	c.JSON(http.StatusOK, gin.H{
		"toon":        encoded,
		"json_tokens": jsonTokens,
		"toon_tokens": toonTokens,
		"savings_pct": savingsPct(jsonTokens, toonTokens),
	})
}

type toonDecodeRequest struct {
	TOON   string `json:"toon" binding:"required"`
	Strict bool   `json:"strict,omitempty"`
}

// handleTOONDecode parses a TOON document back into JSON.
func (s *Server) handleTOONDecode(c *gin.Context) {
	var req toonDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	data, err := toon.Decode(req.TOON, toon.DecodeOptions{Strict: req.Strict})
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "toon_decode_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// handleTOONCompare encodes a document both ways and compares token counts.
func (s *Server) handleTOONCompare(c *gin.Context) {
	var req toonEncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	encoded := toon.Encode(req.Data, toon.EncodeOptions{Delimiter: req.Delimiter, LengthMarker: req.LengthMarker})

	compact, _ := json.Marshal(req.Data)
	pretty, _ := json.MarshalIndent(req.Data, "", "  ")

	jsonCompactTokens := provider.CountTokens("", string(compact))
	jsonPrettyTokens := provider.CountTokens("", string(pretty))
	toonTokens := provider.CountTokens("", encoded)

	c.JSON(http.StatusOK, gin.H{
		"toon":                encoded,
		"json_compact":        string(compact),
		"json_pretty":         string(pretty),
		"json_compact_tokens": jsonCompactTokens,
		"json_pretty_tokens":  jsonPrettyTokens,
		"toon_tokens":         toonTokens,
		"savings_vs_compact":  savingsPct(jsonCompactTokens, toonTokens),
		"savings_vs_pretty":   savingsPct(jsonPrettyTokens, toonTokens),
	})
}

type toonValidateRequest struct {
	TOON  string `json:"toon" binding:"required"`
	Level string `json:"level,omitempty"`
}

// handleTOONValidate lints a TOON document without decoding it.
func (s *Server) handleTOONValidate(c *gin.Context) {
	var req toonValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	level := toon.Level(req.Level)
	switch level {
	case "":
		level = toon.LevelLenient
	case toon.LevelStrict, toon.LevelLenient, toon.LevelBasic:
	default:
		abortWithError(c, http.StatusBadRequest, "invalid_request", "level must be strict, lenient, or basic")
		return
	}
	result := toon.NewValidator(level).Validate(req.TOON)
	c.JSON(http.StatusOK, gin.H{
		"valid":    result.Valid,
		"errors":   result.Errors,
		"warnings": result.Warnings,
		"summary":  result.Summary(),
	})
}

func savingsPct(jsonTokens, toonTokens int) float64 {
	if jsonTokens <= 0 {
		return 0
	}
	return float64(jsonTokens-toonTokens) / float64(jsonTokens) * 100
}
