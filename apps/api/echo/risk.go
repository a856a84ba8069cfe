package echoapi

import (
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/risk"
)

const statusSuccess = "success"

type (
	ProcessResponse struct {
		Status string         `json:"status"`
		Data   []risk.Summary `json:"data"`
	}

	StudentDetailsResponse struct {
		Status string `json:"status"`
		risk.StudentDetails
	}

	SessionResponse struct {
		Status  string           `json:"status"`
		Session risk.SessionInfo `json:"session"`
	}
)

type riskApi struct {
	svc      risk.ServiceInterface
	validate *validator.Validate
	logger   core.Logger
}

func registerRiskAPI(g *echo.Group, svc risk.ServiceInterface, validate *validator.Validate, logger core.Logger) {
	api := riskApi{
		svc:      svc,
		validate: validate,
		logger:   logger,
	}

	g.POST("/process-files", api.processFiles)
	g.GET("/student-details/:student_id", api.studentDetails)
	g.GET("/session", api.session)
}

// Handlers

func (api *riskApi) processFiles(ctx echo.Context) error {
	var data UploadRequest
	if err := data.Bind(ctx); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	files, closer, err := data.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploads")
	}
	defer func() {
		if cErr := closer.Close(); cErr != nil {
			api.logger.Warn("closing uploads", cErr)
		}
	}()

	summaries, err := api.svc.Process(ctx.Request().Context(), files)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ProcessResponse{Status: statusSuccess, Data: summaries})
}

func (api *riskApi) studentDetails(ctx echo.Context) error {
	studentID := ctx.Param("student_id")
	if id, err := url.PathUnescape(studentID); err == nil {
		studentID = id
	}

	details, err := api.svc.StudentDetails(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting student details")
	}
	return ctx.JSON(http.StatusOK, StudentDetailsResponse{Status: statusSuccess, StudentDetails: details})
}

func (api *riskApi) session(ctx echo.Context) error {
	info, err := api.svc.SessionInfo(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting session info")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Status: statusSuccess, Session: info})
}
