package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextRequestID is the gin context key holding the request id set by the logging middleware.
const ContextRequestID = "request_id"

// Body is the standard API response envelope. Failures echo the request id so
// operators can find the matching log line.
type Body struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Error: msg, RequestID: c.GetString(ContextRequestID)})
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data any) { success(c, http.StatusOK, data) }

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data any) { success(c, http.StatusCreated, data) }

// Accepted sends 202; used when a report export is queued.
func Accepted(c *gin.Context, data any) { success(c, http.StatusAccepted, data) }

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Attachment sends a rendered report as a download.
func Attachment(c *gin.Context, name, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, body)
}

func BadRequest(c *gin.Context, msg string)   { fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)    { fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)     { fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)     { fail(c, http.StatusConflict, msg) }

// ServiceUnavailable sends 503; the storage layer is down or a dependency is not configured.
func ServiceUnavailable(c *gin.Context, msg string) { fail(c, http.StatusServiceUnavailable, msg) }

func Internal(c *gin.Context, msg string) { fail(c, http.StatusInternalServerError, msg) }
