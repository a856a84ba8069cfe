package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/risk"
)

const (
	msgNotProcessed    = "Data not processed yet."
	msgStudentNotFound = "Student not found."
	msgProcessingError = "Error in file processing: "
)

// errorResponse is the body of every error response; Detail is a message or a field -> message map.
type errorResponse struct {
	Detail interface{} `json:"detail"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var detail interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			detail = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			detail = translateValidationErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			if flds := origErr.FieldMap(); flds != nil {
				detail = flds
			} else {
				detail = origErr.Error()
			}
		case *risk.ProcessingError:
			code = http.StatusInternalServerError
			detail = msgProcessingError + origErr.Error()
			logger.Warn("pipeline run failed", origErr.Err, ctx.Request())
		default:
			switch origErr {
			case risk.ErrNotProcessed:
				code = http.StatusNotFound
				detail = msgNotProcessed
			case risk.ErrStudentNotFound:
				code = http.StatusNotFound
				detail = msgStudentNotFound
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				detail = msg
				logger.Error(msg, errors.Wrap(err, msg), ctx.Request())

				if ctx.Echo().Debug {
					detail = err.Error()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, errorResponse{Detail: detail})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func translateValidationErrors(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	flds := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		if translator != nil {
			flds[vErr.Field()] = vErr.Translate(translator)
		} else {
			flds[vErr.Field()] = vErr.Error()
		}
	}
	return flds
}
