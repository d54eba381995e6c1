// internal/handlers/generator.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/licenseforge/internal/services"
	"github.com/licenseforge/licenseforge/internal/utils"
)

type GeneratorHandler struct {
	generatorService *services.GeneratorService
	licenseService   *services.LicenseService
}

func NewGeneratorHandler(generatorService *services.GeneratorService, licenseService *services.LicenseService) *GeneratorHandler {
	return &GeneratorHandler{
		generatorService: generatorService,
		licenseService:   licenseService,
	}
}

func (h *GeneratorHandler) CreateGenerator(c *gin.Context) {
	var req services.CreateGeneratorRequest
	if !bindJSON(c, &req) {
		return
	}

	generator, err := h.generatorService.Create(&req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, generator)
}

func (h *GeneratorHandler) GetGenerator(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Generator id must be numeric", nil)
		return
	}

	generator, err := h.generatorService.Get(id)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, generator)
}

func (h *GeneratorHandler) ListGenerators(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	generators, total, err := h.generatorService.List(params.Page, params.Limit)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(generators, total, params))
}

func (h *GeneratorHandler) UpdateGenerator(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Generator id must be numeric", nil)
		return
	}

	var req services.UpdateGeneratorRequest
	if !bindJSON(c, &req) {
		return
	}

	generator, err := h.generatorService.Update(id, &req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, generator)
}

func (h *GeneratorHandler) DeleteGenerator(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Generator id must be numeric", nil)
		return
	}

	if err := h.generatorService.Delete(id); err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": id})
}

// GenerateLicenses bulk-issues licenses from the generator's format spec.
func (h *GeneratorHandler) GenerateLicenses(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Generator id must be numeric", nil)
		return
	}

	var req services.GenerateLicensesRequest
	if !bindJSON(c, &req) {
		return
	}
	req.GeneratorID = id

	licenses, err := h.licenseService.Generate(&req)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"generated": len(licenses)})
}
