package handler

import (
	"github.com/labstack/echo/v4"
)

// APIResponse is the uniform JSON envelope for every HTTP response.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus optional detail.
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// SuccessResponse writes a success envelope with the given status code.
func SuccessResponse(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse writes an error envelope with the given status code.
func ErrorResponse(c echo.Context, status int, message, code, detail string) error {
	return c.JSON(status, APIResponse{
		Success: false,
		Message: message,
		Error:   &APIError{Code: code, Detail: detail},
	})
}
