package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SteveArevalo/CS499-CapStone/internal/models"
	"github.com/SteveArevalo/CS499-CapStone/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// AnimalService is the part of the shelter service used by AnimalHandler
type AnimalService interface {
	CreateAnimal(ctx context.Context, data models.Record, lookup models.Query) (bool, error)
	ReadAnimals(ctx context.Context, query models.Query) ([]models.Record, error)
	UpdateAnimals(ctx context.Context, query models.Query, update models.Query) (int64, error)
	DeleteAnimals(ctx context.Context, query models.Query) (int64, error)
	SearchAnimals(ctx context.Context, text string, size int) ([]map[string]interface{}, error)
}

// AnimalHandler handles animal record requests
type AnimalHandler struct {
	service AnimalService
}

// NewAnimalHandler creates a new animal handler
func NewAnimalHandler(service AnimalService) *AnimalHandler {
	return &AnimalHandler{service: service}
}

// animalRequest is the envelope of every animal request body. Each member is
// relaxed Extended JSON.
type animalRequest struct {
	Data   json.RawMessage `json:"data"`
	Lookup json.RawMessage `json:"lookup"`
	Filter json.RawMessage `json:"filter"`
	Query  json.RawMessage `json:"query"`
	Update json.RawMessage `json:"update"`
}

func bindAnimalRequest(c *gin.Context) (animalRequest, error) {
	var req animalRequest
	body, err := readBody(c)
	if err != nil {
		return req, err
	}
	if len(body) == 0 {
		return req, errors.New("request body is required")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.Wrap(err, "invalid request body")
	}
	return req, nil
}

// HandleCreate inserts a record unless one matching lookup exists
func (h *AnimalHandler) HandleCreate(c *gin.Context) {
	req, err := bindAnimalRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	data, err := models.ParseRecord(req.Data)
	if err != nil {
		badRequest(c, errors.Wrap(err, "data"))
		return
	}
	lookup, err := models.ParseQuery(req.Lookup)
	if err != nil {
		badRequest(c, errors.Wrap(err, "lookup"))
		return
	}

	created, err := h.service.CreateAnimal(c.Request.Context(), data, lookup)
	if err != nil {
		writeError(c, err, false)
		return
	}
	if !created {
		c.JSON(http.StatusAccepted, gin.H{"created": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": true})
}

// HandleRead returns the records matching the filter query parameter
func (h *AnimalHandler) HandleRead(c *gin.Context) {
	filter, err := models.ParseQuery([]byte(c.Query("filter")))
	if err != nil {
		badRequest(c, errors.Wrap(err, "filter"))
		return
	}
	h.read(c, filter)
}

// HandleQuery returns the records matching the filter in the body
func (h *AnimalHandler) HandleQuery(c *gin.Context) {
	req, err := bindAnimalRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	filter, err := models.ParseQuery(req.Filter)
	if err != nil {
		badRequest(c, errors.Wrap(err, "filter"))
		return
	}
	h.read(c, filter)
}

func (h *AnimalHandler) read(c *gin.Context, filter models.Query) {
	records, err := h.service.ReadAnimals(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, records)
		return
	}
	writeRecords(c, http.StatusOK, records)
}

// HandleUpdate applies an update document to the matching records
func (h *AnimalHandler) HandleUpdate(c *gin.Context) {
	req, err := bindAnimalRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	query, err := models.ParseQuery(req.Query)
	if err != nil {
		badRequest(c, errors.Wrap(err, "query"))
		return
	}
	update, err := models.ParseQuery(req.Update)
	if err != nil {
		badRequest(c, errors.Wrap(err, "update"))
		return
	}

	n, err := h.service.UpdateAnimals(c.Request.Context(), query, update)
	if err != nil {
		writeError(c, err, n)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modified": n})
}

// HandleDelete removes the matching records
func (h *AnimalHandler) HandleDelete(c *gin.Context) {
	req, err := bindAnimalRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	query, err := models.ParseQuery(req.Query)
	if err != nil {
		badRequest(c, errors.Wrap(err, "query"))
		return
	}

	n, err := h.service.DeleteAnimals(c.Request.Context(), query)
	if err != nil {
		writeError(c, err, n)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// HandleSearch runs a full-text search
func (h *AnimalHandler) HandleSearch(c *gin.Context) {
	text := c.Query("q")
	if text == "" {
		badRequest(c, errors.New("query parameter q is required"))
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "0"))
	if err != nil || size < 0 {
		badRequest(c, errors.New("size must be a non-negative integer"))
		return
	}

	docs, err := h.service.SearchAnimals(c.Request.Context(), text, size)
	if err != nil {
		if errors.Is(err, services.ErrSearchDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err, []map[string]interface{}{})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// RegisterRoutes registers the handler's routes
func (h *AnimalHandler) RegisterRoutes(router gin.IRouter) {
	animals := router.Group("/animals")
	animals.POST("", h.HandleCreate)
	animals.GET("", h.HandleRead)
	animals.POST("/query", h.HandleQuery)
	animals.PATCH("", h.HandleUpdate)
	animals.DELETE("", h.HandleDelete)
	animals.GET("/search", h.HandleSearch)
}
