package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/assetscan/internal/domain/models"
	"github.com/mamadbah2/assetscan/internal/service/inventory"
)

// InventoryService is the inventory surface exposed over HTTP.
type InventoryService interface {
	Submit(ctx context.Context, sub models.ScanSubmission) (models.MatchOutcome, error)
	Lookup(ctx context.Context, identifier string) (models.LookupResult, error)
	ListUnmatched(ctx context.Context) ([]models.UnmatchedEntry, error)
	RemoveUnmatched(ctx context.Context, identifier string) (int, error)
	ClearUnmatched(ctx context.Context) (int, error)
	Progress(ctx context.Context) (models.Progress, error)
	Health(ctx context.Context) error
	StoreName() string
}

// BarcodeHandler exposes scan submission and unmatched-ledger endpoints.
type BarcodeHandler struct {
	svc    InventoryService
	logger *zap.Logger
}

// NewBarcodeHandler constructs the HTTP handler adapter.
func NewBarcodeHandler(svc InventoryService, logger *zap.Logger) *BarcodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BarcodeHandler{svc: svc, logger: logger}
}

type submitRequest struct {
	Data     string `json:"data"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Room     string `json:"room"`
}

type submitResponse struct {
	Success        bool   `json:"success"`
	Found          bool   `json:"found"`
	AlreadyMarked  bool   `json:"alreadyMarked,omitempty"`
	AlreadyInOther bool   `json:"alreadyInOther,omitempty"`
	NotInInventory bool   `json:"notInInventory,omitempty"`
	LValue         string `json:"lValue,omitempty"`
	MarkedCount    *int   `json:"markedCount,omitempty"`
	TotalCount     *int   `json:"totalCount,omitempty"`
	Message        string `json:"message"`
}

type lookupResponse struct {
	Success          bool   `json:"success"`
	Found            bool   `json:"found"`
	AssetDescription string `json:"assetDescription"`
	AssetID          string `json:"assetId"`
	AssetName        string `json:"assetName"`
	IsMarked         bool   `json:"isMarked"`
}

type deleteRequest struct {
	Data string `json:"data"`
}

// Submit records a scanned barcode with its status.
func (h *BarcodeHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid scan payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "message": err.Error()})
		return
	}

	outcome, err := h.svc.Submit(c.Request.Context(), models.ScanSubmission{
		Identifier: req.Data,
		Status:     models.StatusCode(req.Status),
		Location:   req.Location,
		Room:       req.Room,
	})
	if err != nil {
		h.writeError(c, "failed processing scan", err)
		return
	}

	c.JSON(http.StatusOK, buildSubmitResponse(strings.TrimSpace(req.Data), outcome))
}

// Lookup previews a barcode without recording it.
func (h *BarcodeHandler) Lookup(c *gin.Context) {
	result, err := h.svc.Lookup(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.writeError(c, "failed looking up barcode", err)
		return
	}

	c.JSON(http.StatusOK, lookupResponse{
		Success:          true,
		Found:            result.Found,
		AssetDescription: result.Description,
		AssetID:          result.Identifier,
		AssetName:        result.Name,
		IsMarked:         result.Marked,
	})
}

// List returns the unmatched entries.
func (h *BarcodeHandler) List(c *gin.Context) {
	entries, err := h.svc.ListUnmatched(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed listing unmatched barcodes", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Delete removes one identifier from the unmatched sheet.
func (h *BarcodeHandler) Delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid delete payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body", "message": err.Error()})
		return
	}

	removed, err := h.svc.RemoveUnmatched(c.Request.Context(), req.Data)
	if err != nil {
		h.writeError(c, "failed deleting barcode", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

// Clear empties the unmatched sheet.
func (h *BarcodeHandler) Clear(c *gin.Context) {
	cleared, err := h.svc.ClearUnmatched(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed clearing barcodes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": cleared})
}

// Progress reports the processed count.
func (h *BarcodeHandler) Progress(c *gin.Context) {
	progress, err := h.svc.Progress(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed computing progress", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"markedCount": progress.MarkedCount,
		"totalCount":  progress.TotalCount,
	})
}

// Statuses lists the accepted scan statuses.
func (h *BarcodeHandler) Statuses(c *gin.Context) {
	c.JSON(http.StatusOK, models.Statuses)
}

// Locations lists the known site codes.
func (h *BarcodeHandler) Locations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"default": models.DefaultLocationCode, "locations": models.Locations})
}

// Health reports whether the backing workbook is reachable.
func (h *BarcodeHandler) Health(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "UNAVAILABLE",
			"message": err.Error(),
			"store":   h.svc.StoreName(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"message": "Barcode server is running",
		"store":   h.svc.StoreName(),
	})
}

func (h *BarcodeHandler) writeError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "message": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrWriteFailed):
		return http.StatusInternalServerError
	case errors.Is(err, inventory.ErrStoreUnavailable), errors.Is(err, inventory.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func buildSubmitResponse(identifier string, outcome models.MatchOutcome) submitResponse {
	resp := submitResponse{Success: true, Found: outcome.Found(), LValue: outcome.Label}

	switch outcome.Kind {
	case models.OutcomeUpdated:
		marked, total := outcome.MarkedCount, outcome.TotalCount
		resp.MarkedCount = &marked
		resp.TotalCount = &total
		resp.Message = fmt.Sprintf("%s updated (%d of %d processed)", displayName(identifier, outcome.Label), marked, total)
	case models.OutcomeAlreadyProcessed:
		resp.AlreadyMarked = true
		resp.Message = fmt.Sprintf("%s was already marked", displayName(identifier, outcome.Label))
	case models.OutcomeAddedToUnmatched:
		resp.NotInInventory = true
		resp.Message = fmt.Sprintf("%s not found in inventory, added to unmatched list", identifier)
	case models.OutcomeDuplicateUnmatched:
		resp.NotInInventory = true
		resp.AlreadyInOther = true
		resp.Message = fmt.Sprintf("%s is already in the unmatched list", identifier)
	}
	return resp
}

func displayName(identifier, label string) string {
	if label == "" {
		return identifier
	}
	return fmt.Sprintf("%s (%s)", label, identifier)
}
