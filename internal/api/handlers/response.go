package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"
	"github.com/SteveArevalo/CS499-CapStone/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, repositories.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, repositories.ErrStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err. Store failures carry the empty default result so
// clients can tell an empty answer from a failed one.
func writeError(c *gin.Context, err error, result interface{}) {
	status := errorStatus(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusServiceUnavailable {
		body["result"] = result
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, body)
}

// writeRecords writes records as a relaxed Extended JSON array so BSON dates
// and ids survive the round trip
func writeRecords(c *gin.Context, status int, records []models.Record) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range records {
		raw, err := bson.MarshalExtJSON(rec, false, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": errors.Wrap(err, "failed to encode record").Error()})
			return
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	c.Data(status, "application/json; charset=utf-8", buf.Bytes())
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errors.Wrap(err, "failed to read request body")
	}
	return body, nil
}

func badRequest(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
