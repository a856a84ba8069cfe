package risk

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// numericFeatures and categoricalFeatures are the modeling inputs, in schema order.
	numericFeatures     = []string{ColAttendancePercentage, ColAverageMarks}
	categoricalFeatures = []string{ColDepartment, ColFeeStatus}
)

// CategoricalFeature is a one-hot encoded column. The first (smallest) level is dropped
// to avoid collinearity; every kept level becomes a `<Name>_<Level>` column.
type CategoricalFeature struct {
	Name    string   `json:"name"`
	Dropped string   `json:"dropped"`
	Levels  []string `json:"levels"`
}

// FeatureSchema is the exact, ordered list of encoded columns a model was trained on.
type FeatureSchema struct {
	Numeric     []string             `json:"numeric"`
	Categorical []CategoricalFeature `json:"categorical"`
}

// BuildSchema derives the schema from the records: numeric features first, then the
// dummy columns of each categorical feature with its levels sorted.
func BuildSchema(records []StudentRecord) FeatureSchema {
	schema := FeatureSchema{Numeric: append([]string(nil), numericFeatures...)}
	for _, name := range categoricalFeatures {
		seen := make(map[string]bool)
		var levels []string
		for _, rec := range records {
			lvl := categoricalValue(rec, name)
			if !seen[lvl] {
				seen[lvl] = true
				levels = append(levels, lvl)
			}
		}
		sort.Strings(levels)

		cf := CategoricalFeature{Name: name, Levels: []string{}}
		if len(levels) > 0 {
			cf.Dropped = levels[0]
			cf.Levels = levels[1:]
		}
		schema.Categorical = append(schema.Categorical, cf)
	}
	return schema
}

// Names returns the encoded column names in order.
func (s FeatureSchema) Names() []string {
	names := append([]string(nil), s.Numeric...)
	for _, cf := range s.Categorical {
		for _, lvl := range cf.Levels {
			names = append(names, dummyName(cf.Name, lvl))
		}
	}
	return names
}

// Len returns the number of encoded columns.
func (s FeatureSchema) Len() int {
	n := len(s.Numeric)
	for _, cf := range s.Categorical {
		n += len(cf.Levels)
	}
	return n
}

// Encode one-hot encodes the record and reindexes it onto the schema's columns.
// Columns the record does not produce (eg. an unseen category) are zero.
// This is the only encoding routine; training and explanations both go through it.
func (s FeatureSchema) Encode(rec StudentRecord) []float64 {
	produced := make(map[string]float64, len(s.Numeric)+len(s.Categorical))
	for _, name := range s.Numeric {
		produced[name] = numericValue(rec, name)
	}
	for _, cf := range s.Categorical {
		produced[dummyName(cf.Name, categoricalValue(rec, cf.Name))] = 1
	}

	names := s.Names()
	row := make([]float64, len(names))
	for i, name := range names {
		row[i] = produced[name] // zero if absent
	}
	return row
}

// EncodeAll encodes every record.
func (s FeatureSchema) EncodeAll(records []StudentRecord) [][]float64 {
	X := make([][]float64, len(records))
	for i, rec := range records {
		X[i] = s.Encode(rec)
	}
	return X
}

// Validate checks the schema only refers to known features.
func (s FeatureSchema) Validate() error {
	for _, name := range s.Numeric {
		if !contains(numericFeatures, name) {
			return errors.Errorf("unknown numeric feature %q", name)
		}
	}
	for _, cf := range s.Categorical {
		if !contains(categoricalFeatures, cf.Name) {
			return errors.Errorf("unknown categorical feature %q", cf.Name)
		}
	}
	return nil
}

func dummyName(feature, level string) string {
	return feature + "_" + level
}

func numericValue(rec StudentRecord, name string) float64 {
	switch name {
	case ColAttendancePercentage:
		return rec.AttendancePercentage
	case ColAverageMarks:
		return rec.AverageMarks
	}
	return 0
}

func categoricalValue(rec StudentRecord, name string) string {
	switch name {
	case ColDepartment:
		return rec.Department
	case ColFeeStatus:
		return rec.FeeStatus
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
