package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/logging"
)

type response struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// HTTPErrorHandler maps domain errors to a fixed status and stable machine
// code. Unexpected errors are logged with their cause and surface as a bare
// 500 body.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			// echo's own routing/binding errors (404, 405, malformed body)
			appErr = &Error{Status: he.Code, Code: codeForStatus(he.Code), Detail: detailOf(he)}
		} else {
			appErr = Internal(err)
		}
	}

	if appErr.Status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request failed",
			"code", appErr.Code, "error", err.Error())
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(appErr.Status)
		return
	}
	_ = c.JSON(appErr.Status, response{Error: appErr.Code, Detail: appErr.Detail})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusRequestEntityTooLarge:
		return "FILE_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

func detailOf(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok {
		return s
	}
	return http.StatusText(he.Code)
}
