// internal/handlers/binding.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseforge/licenseforge/internal/utils"
)

// bindJSON decodes the request body into req and writes the error
// response on failure. Binding-tag failures come back as field-level
// details; malformed JSON is a plain bad request.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	if fieldErrors := utils.GetValidationErrors(err); len(fieldErrors) > 0 {
		utils.ValidationErrorResponse(c, fieldErrors)
	} else {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
	}
	return false
}
