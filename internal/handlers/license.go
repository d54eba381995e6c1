// internal/handlers/license.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/licenseforge/internal/models"
	"github.com/licenseforge/licenseforge/internal/repository"
	"github.com/licenseforge/licenseforge/internal/services"
	"github.com/licenseforge/licenseforge/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
	exportService  *services.ExportService
}

func NewLicenseHandler(licenseService *services.LicenseService, exportService *services.ExportService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		exportService:  exportService,
	}
}

type licenseView struct {
	*models.License
	Key     string `json:"key,omitempty"`
	Expired bool   `json:"expired"`
}

func (h *LicenseHandler) view(license *models.License, includeKey bool) licenseView {
	view := licenseView{
		License: license,
		Expired: license.IsExpired(time.Now()),
	}
	if includeKey {
		key, err := h.licenseService.RevealKey(license)
		if err != nil {
			// Recoverable: the row stays manageable without its key.
			key = ""
		}
		view.Key = key
	}
	return view
}

func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	var req services.CreateLicenseRequest
	if !bindJSON(c, &req) {
		return
	}

	license, err := h.licenseService.Create(&req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, h.view(license, true))
}

func (h *LicenseHandler) GetLicense(c *gin.Context) {
	license, err := h.licenseService.Find(c.Param("id_or_key"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	includeKey := c.Query("show_key") == "true"
	utils.SuccessResponse(c, h.view(license, includeKey))
}

func (h *LicenseHandler) ListLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := repository.LicenseFilter{
		Page:  params.Page,
		Limit: params.Limit,
	}

	if v := c.Query("order_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.OrderID = &id
		}
	}
	if v := c.Query("product_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ProductID = &id
		}
	}
	if v := c.Query("user_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.UserID = &id
		}
	}
	if v := c.Query("status"); v != "" {
		status := models.LicenseStatus(v)
		if !status.Valid() {
			utils.BadRequestResponse(c, "Unknown status "+v, nil)
			return
		}
		filter.Status = &status
	}
	if v := c.Query("source"); v != "" {
		source := models.LicenseSource(v)
		if !source.Valid() {
			utils.BadRequestResponse(c, "Unknown source "+v, nil)
			return
		}
		filter.Source = &source
	}
	if v := c.Query("created_after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if v := c.Query("created_before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedBefore = &t
		}
	}

	licenses, total, err := h.licenseService.Query(filter)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	views := make([]licenseView, 0, len(licenses))
	for i := range licenses {
		views = append(views, h.view(&licenses[i], false))
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(views, total, params))
}

func (h *LicenseHandler) UpdateLicense(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id_or_key"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "License id must be numeric", nil)
		return
	}

	var req services.UpdateLicenseRequest
	if !bindJSON(c, &req) {
		return
	}

	license, err := h.licenseService.Update(id, &req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, h.view(license, false))
}

func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id_or_key"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "License id must be numeric", nil)
		return
	}

	if err := h.licenseService.Delete(id); err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": id})
}

type activateBody struct {
	Key      string       `json:"key" binding:"required"`
	Label    string       `json:"label,omitempty"`
	MetaData models.JSONB `json:"meta_data,omitempty"`
}

func (h *LicenseHandler) ActivateLicense(c *gin.Context) {
	var body activateBody
	if !bindJSON(c, &body) {
		return
	}

	activation, err := h.licenseService.Activate(body.Key, &services.ActivateRequest{
		Label:     body.Label,
		Source:    models.SourceWeb,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		MetaData:  body.MetaData,
	})
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, activation)
}

func (h *LicenseHandler) DeactivateLicense(c *gin.Context) {
	activation, err := h.licenseService.Deactivate(c.Param("token"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, activation)
}

func (h *LicenseHandler) ReactivateLicense(c *gin.Context) {
	activation, err := h.licenseService.Reactivate(c.Param("token"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, activation)
}

func (h *LicenseHandler) ListActivations(c *gin.Context) {
	license, err := h.licenseService.Find(c.Param("id_or_key"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	activeOnly := c.Query("active") == "true"
	activations, err := h.licenseService.ListActivations(license.ID, activeOnly)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	count, err := h.licenseService.CountActive(license.ID)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, activations, gin.H{"active_count": count})
}

func (h *LicenseHandler) ImportLicenses(c *gin.Context) {
	var req services.ImportLicensesRequest
	if !bindJSON(c, &req) {
		return
	}

	licenses, err := h.licenseService.ImportKeys(&req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"imported": len(licenses)})
}

func (h *LicenseHandler) ExportLicenses(c *gin.Context) {
	var req struct {
		Status      string `json:"status,omitempty"`
		OrderID     *int64 `json:"order_id,omitempty"`
		ProductID   *int64 `json:"product_id,omitempty"`
		IncludeKeys bool   `json:"include_keys,omitempty"`
	}
	if !bindJSON(c, &req) {
		return
	}

	filter := repository.LicenseFilter{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
	}
	if req.Status != "" {
		status := models.LicenseStatus(req.Status)
		if !status.Valid() {
			utils.BadRequestResponse(c, "Unknown status "+req.Status, nil)
			return
		}
		filter.Status = &status
	}

	result, err := h.exportService.Export(services.ExportRequest{
		Filter:      filter,
		IncludeKeys: req.IncludeKeys,
	})
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	if result.Location == "" {
		// No object storage configured; stream the file back instead.
		c.Header("Content-Disposition", "attachment; filename=licenses-"+result.FileID+".csv")
		c.Data(200, "text/csv", result.CSV)
		return
	}

	utils.SuccessResponse(c, result)
}

// Meta endpoints

type metaBody struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (h *LicenseHandler) AddMeta(c *gin.Context) {
	license, err := h.licenseService.Find(c.Param("id_or_key"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	var body metaBody
	if !bindJSON(c, &body) {
		return
	}

	meta, err := h.licenseService.AddMeta(license.ID, body.Key, body.Value)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, meta)
}

func (h *LicenseHandler) GetMeta(c *gin.Context) {
	license, err := h.licenseService.Find(c.Param("id_or_key"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	meta, err := h.licenseService.GetMeta(license.ID, c.Query("key"))
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, meta)
}

func (h *LicenseHandler) UpdateMeta(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("meta_id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Meta id must be numeric", nil)
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if !bindJSON(c, &body) {
		return
	}

	meta, err := h.licenseService.UpdateMeta(id, body.Value)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, meta)
}

func (h *LicenseHandler) DeleteMeta(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("meta_id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Meta id must be numeric", nil)
		return
	}

	if err := h.licenseService.DeleteMeta(id); err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": id})
}
