package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/risk"
)

// UploadRequest is the multipart form of a pipeline run.
type UploadRequest struct {
	Students    *multipart.FileHeader `json:"students_file" validate:"required"`
	Attendance  *multipart.FileHeader `json:"attendance_file" validate:"required"`
	Assessments *multipart.FileHeader `json:"assessments_file" validate:"required"`
	Fees        *multipart.FileHeader `json:"fees_file" validate:"required"`
}

// Bind reads the file fields of the multipart form. A request that is not multipart binds nothing.
func (req *UploadRequest) Bind(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil
		}
		var herr *echo.HTTPError
		if errors.As(err, &herr) { // eg. body too large
			return herr
		}
		return core.NewValidationError(errors.Wrap(err, "reading multipart form"))
	}

	file := func(field string) *multipart.FileHeader {
		if fhs := form.File[field]; len(fhs) > 0 {
			return fhs[0]
		}
		return nil
	}
	req.Students = file(risk.FieldStudents)
	req.Attendance = file(risk.FieldAttendance)
	req.Assessments = file(risk.FieldAssessments)
	req.Fees = file(risk.FieldFees)
	return nil
}

func (req *UploadRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(req)
}

// Open opens the uploaded files. The returned closer closes all of them.
func (req *UploadRequest) Open() (risk.Files, io.Closer, error) {
	var files closers
	open := func(fh *multipart.FileHeader) (io.Reader, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %q", fh.Filename)
		}
		files = append(files, f)
		return f, nil
	}

	var out risk.Files
	var err error
	if out.Students, err = open(req.Students); err != nil {
		_ = files.Close()
		return risk.Files{}, nil, err
	}
	if out.Attendance, err = open(req.Attendance); err != nil {
		_ = files.Close()
		return risk.Files{}, nil, err
	}
	if out.Assessments, err = open(req.Assessments); err != nil {
		_ = files.Close()
		return risk.Files{}, nil, err
	}
	if out.Fees, err = open(req.Fees); err != nil {
		_ = files.Close()
		return risk.Files{}, nil, err
	}
	return out, files, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
