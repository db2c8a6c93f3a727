package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/repository"
)

// historyHandler exposes the GenerationHistory browse-and-restore
// surface (§8 Scenario F), supplemented beyond spec.md's distillation
// per SPEC_FULL.md §C — not present in the teacher, which never carries
// a generation history concept, so the routing/response shape here
// follows the teacher's JobsHandler conventions (param extraction,
// uniform APIError responses) applied to a new resource.
type historyHandler struct {
	artifacts *repository.ArtifactRepository
	logger    *zap.Logger
}

func newHistoryHandler(artifacts *repository.ArtifactRepository, logger *zap.Logger) *historyHandler {
	return &historyHandler{artifacts: artifacts, logger: logger}
}

// List handles GET /api/v1/artifacts/:type/:id/history.
func (h *historyHandler) List(c *gin.Context) {
	resourceType, err := parseResourceType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	resourceID := c.Param("id")

	entries, err := h.artifacts.ListHistory(c.Request.Context(), resourceType, resourceID)
	if err != nil {
		h.logger.Error("list history", zap.String("resource_type", string(resourceType)), zap.String("resource_id", resourceID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Select handles POST /api/v1/artifacts/:type/:id/history/:entry_id/select.
func (h *historyHandler) Select(c *gin.Context) {
	resourceType, err := parseResourceType(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	resourceID := c.Param("id")
	entryID := c.Param("entry_id")

	if err := h.artifacts.SelectHistoryEntry(c.Request.Context(), resourceType, resourceID, entryID); err != nil {
		h.logger.Error("select history entry",
			zap.String("resource_type", string(resourceType)),
			zap.String("resource_id", resourceID),
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseResourceType(raw string) (domain.ResourceType, error) {
	switch domain.ResourceType(raw) {
	case domain.ResourceCharacter, domain.ResourceScene, domain.ResourceShot, domain.ResourceTransition, domain.ResourceSentence:
		return domain.ResourceType(raw), nil
	default:
		return "", domain.NewValidationError("unknown resource type %q", raw)
	}
}
