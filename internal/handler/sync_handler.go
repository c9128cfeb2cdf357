package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"socialsync/internal/model"
	"socialsync/internal/repository"
	"socialsync/internal/service/catalogsync"
	"socialsync/pkg/utils"
)

// JobService queued sync mode
type JobService interface {
	Enqueue(ctx context.Context, job *model.SyncJob) (*catalogsync.JobStatus, error)
	Status(ctx context.Context, id string) (*catalogsync.JobStatus, error)
}

// SyncHandler catalog sync handler
type SyncHandler struct {
	syncer  catalogsync.Syncer
	jobs    JobService
	catalog repository.CatalogRepository
}

// NewSyncHandler creates a sync handler
func NewSyncHandler(syncer catalogsync.Syncer, jobs JobService, catalog repository.CatalogRepository) *SyncHandler {
	utils.RegisterCustomValidators()
	return &SyncHandler{
		syncer:  syncer,
		jobs:    jobs,
		catalog: catalog,
	}
}

// PublishRequest product to push and where
type PublishRequest struct {
	Product   *model.Product `json:"product" binding:"required"`
	Platforms []string       `json:"platforms" binding:"required,min=1"`
}

// DeleteRequest listing to remove and where
type DeleteRequest struct {
	SKU       string   `json:"sku" binding:"required,sku"`
	Platforms []string `json:"platforms" binding:"required,min=1"`
}

// JobRequest sync to run in the background
type JobRequest struct {
	Operation model.SyncOperation `json:"operation" binding:"required,oneof=publish delete"`
	Product   *model.Product      `json:"product"`
	SKU       string              `json:"sku"`
	Platforms []string            `json:"platforms" binding:"required,min=1"`
}

// Publish creates or updates a product on every requested platform.
// Per-platform failures are reported inside a 200 response.
func (h *SyncHandler) Publish(c *gin.Context) {
	var req PublishRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.syncer.Publish(c.Request.Context(), req.Product, normalizePlatforms(req.Platforms))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// Delete removes a product from every requested platform
func (h *SyncHandler) Delete(c *gin.Context) {
	var req DeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.syncer.Delete(c.Request.Context(), req.SKU, normalizePlatforms(req.Platforms))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// EnqueueJob hands a sync to the background consumer
func (h *SyncHandler) EnqueueJob(c *gin.Context) {
	var req JobRequest
	if !bindJSON(c, &req) {
		return
	}

	job := &model.SyncJob{
		Operation:   req.Operation,
		Product:     req.Product,
		SKU:         req.SKU,
		Platforms:   normalizePlatforms(req.Platforms),
		RequestedBy: c.GetString("user_id"),
	}

	status, err := h.jobs.Enqueue(c.Request.Context(), job)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.AcceptedResponse(c, gin.H{
		"job_id": status.ID,
		"state":  status.State,
	})
}

// GetJob returns the last stored state of a queued sync
func (h *SyncHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		utils.Error(c, utils.CodeInvalidParam, "Missing job id")
		return
	}

	status, err := h.jobs.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, catalogsync.ErrJobNotFound) {
			utils.Error(c, utils.CodeNotFound, err.Error())
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}

// GetCatalog lists the remote listings of a SKU
func (h *SyncHandler) GetCatalog(c *gin.Context) {
	sku := c.Param("sku")
	if err := utils.ValidateSKU(sku); err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.catalog.ListBySKU(c.Request.Context(), sku)
	if err != nil {
		utils.Error(c, utils.CodeDatabaseError, "Failed to load catalog entries")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"sku":     sku,
		"entries": entries,
	})
}
