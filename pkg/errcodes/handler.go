package errcodes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	echologger "github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
	"github.com/robinjoseph08/golib/logger"
)

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle is an Echo error handler. Error values render as themselves, echo
// errors keep their status, and anything else is a 500.
func (h *Handler) Handle(err error, c echo.Context) {
	log := echologger.FromEchoContext(c)

	// The client went away; there is nobody to answer.
	if errutils.IsIgnorableErr(err) || errors.Is(err, context.Canceled) {
		log.Err(err).Warn("client disconnected")
		return
	}
	if c.Response().Committed {
		log.Err(err).Warn("error after response was committed")
		return
	}

	e := toError(err)
	switch {
	case e.HTTPCode >= http.StatusInternalServerError && e.HTTPCode != http.StatusInternalServerError:
		log.Err(err).Warn("upstream error", logger.Data{"code": e.Code})
	case e.HTTPCode == http.StatusInternalServerError:
		log.Err(err).Error("server error")
	}

	body := errorResponse{Error: errorBody{Code: e.Code, Message: e.Message, StatusCode: e.HTTPCode}}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(e.HTTPCode)
	} else {
		err = c.JSON(e.HTTPCode, body)
	}
	if err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func toError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return PayloadTooLarge().(*Error)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusRequestEntityTooLarge {
			return PayloadTooLarge().(*Error)
		}
		msg := fmt.Sprint(he.Message)
		return &Error{HTTPCode: he.Code, Message: msg, Code: strcase.ToSnake(msg)}
	}

	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Message:  "Internal Server Error",
		Code:     "internal_server_error",
	}
}
