package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/m2tx/tutor_agent/internal/logging"
)

// Reloader drops cached index data for a collection.
type Reloader interface {
	Invalidate(collectionID string)
}

// Assigner maps a user to a document collection.
type Assigner interface {
	AssignCollection(ctx context.Context, userID, collectionID string) error
}

// CollectionsHandler serves the collection maintenance endpoints. Either
// collaborator may be nil, in which case its route answers 501.
type CollectionsHandler struct {
	reloader Reloader
	assigner Assigner
	logger   logging.Logger
}

func NewCollectionsHandler(reloader Reloader, assigner Assigner, logger logging.Logger) *CollectionsHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CollectionsHandler{reloader: reloader, assigner: assigner, logger: logger}
}

func (h *CollectionsHandler) register(r gin.IRouter) {
	r.POST("/collections/:collection_id/reload", h.Reload)
	r.PUT("/users/:user_id/collection", h.Assign)
}

// Reload re-reads a collection's documents on the next search.
func (h *CollectionsHandler) Reload(c *gin.Context) {
	if h.reloader == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": "reload is not available"})
		return
	}
	id := c.Param("collection_id")
	h.reloader.Invalidate(id)
	h.logger.WithField("collection", id).Info("Collection invalidated")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Assign sets the collection searched for a user.
func (h *CollectionsHandler) Assign(c *gin.Context) {
	if h.assigner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": "collection assignment requires MongoDB"})
		return
	}
	var body struct {
		CollectionID string `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.CollectionID) == "" {
		badRequest(c, "collection_id is required")
		return
	}

	userID := c.Param("user_id")
	if err := h.assigner.AssignCollection(c.Request.Context(), userID, body.CollectionID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to assign collection")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to assign collection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
