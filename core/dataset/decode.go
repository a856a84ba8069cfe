package dataset

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eudg/core"
)

var (
	nullFloatType = reflect.TypeOf(null.Float64{})
	nullStrType   = reflect.TypeOf(null.String{})
)

// RowError reports a row of a file that could not be decoded or validated.
// Line is the 1-based line in the file, header included.
type RowError struct {
	File   string
	Line   int
	Fields []core.FieldError
}

func (e *RowError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, fld := range e.Fields {
		msgs = append(msgs, fld.Field+": "+fld.Error)
	}
	return fmt.Sprintf("%s: line %d: %s", e.File, e.Line, strings.Join(msgs, "; "))
}

// Decoder decodes table rows into structs tagged with `csv:"Column"` and validates them.
// Supported field types: string, float64, int, null.Float64, null.String.
// Missing cells (see IsNA) decode to the zero value, or to null for the null types;
// string fields keep the cell as is.
type Decoder struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewDecoder(validate *validator.Validate, translator ut.Translator) *Decoder {
	return &Decoder{validate: validate, translator: translator}
}

// DecodeRows decodes every row of the table into a T.
func DecodeRows[T any](dec *Decoder, tbl *Table) ([]T, error) {
	out := make([]T, len(tbl.Rows))
	for i := range tbl.Rows {
		if err := dec.Decode(tbl, i, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Decode decodes row `row` of the table into dst, which must be a pointer to a struct.
func (dec *Decoder) Decode(tbl *Table, row int, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("dataset: cannot decode into %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()
	line := row + 2

	var fldErrs []core.FieldError
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		col := strings.SplitN(sf.Tag.Get("csv"), ",", 2)[0]
		if col == "" || col == "-" {
			continue
		}
		if err := setField(rv.Field(i), tbl.Value(row, col)); err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: col, Error: err.Error()})
		}
	}
	if fldErrs != nil {
		return &RowError{File: tbl.Name, Line: line, Fields: fldErrs}
	}

	if err := dec.validate.Struct(dst); err != nil {
		if flds, ok := core.TranslateFieldErrors(err, dec.translator); ok {
			return &RowError{File: tbl.Name, Line: line, Fields: flds}
		}
		return errors.Wrapf(err, "%s: line %d", tbl.Name, line)
	}
	return nil
}

func setField(fv reflect.Value, cell string) error {
	switch fv.Type() {
	case nullFloatType:
		if IsNA(cell) {
			fv.Set(reflect.ValueOf(null.Float64{}))
			return nil
		}
		f, err := parseFloat(cell)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(null.Float64From(f)))
		return nil
	case nullStrType:
		if IsNA(cell) {
			fv.Set(reflect.ValueOf(null.String{}))
		} else {
			fv.Set(reflect.ValueOf(null.StringFrom(cell)))
		}
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(cell)
	case reflect.Float64:
		if IsNA(cell) {
			fv.SetFloat(0)
			return nil
		}
		f, err := parseFloat(cell)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Int:
		if IsNA(cell) {
			fv.SetInt(0)
			return nil
		}
		n, err := strconv.Atoi(cell)
		if err != nil {
			return errors.Errorf("invalid integer %q", cell)
		}
		fv.SetInt(int64(n))
	default:
		return errors.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

func parseFloat(cell string) (float64, error) {
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, errors.Errorf("invalid number %q", cell)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.Errorf("number %q is not finite", cell)
	}
	return f, nil
}
