package risk

import (
	"fmt"

	"github.com/volatiletech/null/v8"
	"gonum.org/v1/gonum/stat"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/dataset"
)

type (
	studentRow struct {
		StudentID  string `csv:"StudentID" validate:"required"`
		Name       string `csv:"Name"`
		Department string `csv:"Department"`
	}

	attendanceRow struct {
		StudentID string `csv:"StudentID" validate:"required"`
		Status    string `csv:"Status"`
	}

	assessmentRow struct {
		StudentID     string       `csv:"StudentID" validate:"required"`
		MarksObtained null.Float64 `csv:"MarksObtained"`
	}

	feeRow struct {
		StudentID string `csv:"StudentID" validate:"required"`
		Status    string `csv:"Status"`
	}

	// joined is a students row after the left joins, before the missing-value policy applies.
	joined struct {
		student    studentRow
		attendance null.Float64
		marks      null.Float64
		feeStatus  null.String
		extra      map[string]interface{}
	}
)

// FillPolicy decides what a missing value becomes after the joins.
// A student with no attendance rows, no marks or no fee row gets these values instead.
type FillPolicy struct {
	Numeric  float64
	Category string
	Extra    interface{}
}

// ZeroFill fills every missing value with zero ("0" for categories).
// NB: this treats "no data" like a 0% attendance / 0 marks student.
var ZeroFill = FillPolicy{Numeric: 0, Category: "0", Extra: 0}

func (p FillPolicy) Float(v null.Float64) float64 {
	if v.Valid {
		return v.Float64
	}
	return p.Numeric
}

func (p FillPolicy) String(v null.String) string {
	if v.Valid && v.String != "" {
		return v.String
	}
	return p.Category
}

func (p FillPolicy) Cell(v interface{}) interface{} {
	if v == nil {
		return p.Extra
	}
	return v
}

// Labeler applies the at-risk rule.
type Labeler struct {
	AttendanceThreshold float64
	MarksThreshold      float64
}

// DefaultLabeler flags students under 75% attendance and 60 average marks.
var DefaultLabeler = Labeler{AttendanceThreshold: 75, MarksThreshold: 60}

// Label returns 1 iff both attendance and marks are below their thresholds.
func (l Labeler) Label(attendance, marks float64) int {
	if attendance < l.AttendanceThreshold && marks < l.MarksThreshold {
		return 1
	}
	return 0
}

// attendanceRates returns 100 * present / total rows, per student.
func attendanceRates(rows []attendanceRow) map[string]float64 {
	present := make(map[string]int)
	total := make(map[string]int)
	for _, row := range rows {
		total[row.StudentID]++
		if row.Status == StatusPresent {
			present[row.StudentID]++
		}
	}
	rates := make(map[string]float64, len(total))
	for id, n := range total {
		rates[id] = 100 * float64(present[id]) / float64(n)
	}
	return rates
}

// averageMarks returns the mean of the non-blank marks, per student.
func averageMarks(rows []assessmentRow) map[string]float64 {
	marks := make(map[string][]float64)
	for _, row := range rows {
		if row.MarksObtained.Valid {
			marks[row.StudentID] = append(marks[row.StudentID], row.MarksObtained.Float64)
		}
	}
	avgs := make(map[string]float64, len(marks))
	for id, m := range marks {
		avgs[id] = stat.Mean(m, nil)
	}
	return avgs
}

// feeStatuses returns the fee status per student; the last row of a student wins.
func feeStatuses(rows []feeRow) map[string]string {
	statuses := make(map[string]string, len(rows))
	for _, row := range rows {
		statuses[row.StudentID] = row.Status
	}
	return statuses
}

// consolidate left-joins students with the aggregates, fills missing values and labels the rows.
func consolidate(
	students *dataset.Table,
	studentRows []studentRow,
	rates, avgs map[string]float64,
	fees map[string]string,
	policy FillPolicy,
	labeler Labeler,
) ([]StudentRecord, error) {
	seen := make(map[string]int, len(studentRows))
	records := make([]StudentRecord, 0, len(studentRows))

	for i, row := range studentRows {
		if line, dup := seen[row.StudentID]; dup {
			return nil, &dataset.RowError{
				File: students.Name,
				Line: i + 2,
				Fields: []core.FieldError{{
					Field: ColStudentID,
					Error: fmt.Sprintf("duplicate student %q (first seen on line %d)", row.StudentID, line),
				}},
			}
		}
		seen[row.StudentID] = i + 2

		j := joined{student: row, extra: make(map[string]interface{})}
		if rate, ok := rates[row.StudentID]; ok {
			j.attendance = null.Float64From(rate)
		}
		if avg, ok := avgs[row.StudentID]; ok {
			j.marks = null.Float64From(avg)
		}
		if status, ok := fees[row.StudentID]; ok {
			j.feeStatus = null.StringFrom(status)
		}
		for c, raw := range students.Header {
			switch col := students.Column(c); col {
			case ColStudentID, ColName, ColDepartment:
			default:
				j.extra[raw] = students.Cell(i, col)
			}
		}
		records = append(records, j.fill(policy, labeler))
	}
	return records, nil
}

func (j joined) fill(policy FillPolicy, labeler Labeler) StudentRecord {
	rec := StudentRecord{
		StudentID:            j.student.StudentID,
		Name:                 policy.String(null.StringFrom(j.student.Name)),
		Department:           policy.String(null.StringFrom(j.student.Department)),
		AttendancePercentage: policy.Float(j.attendance),
		AverageMarks:         policy.Float(j.marks),
		FeeStatus:            policy.String(j.feeStatus),
		Extra:                make(map[string]interface{}, len(j.extra)),
	}
	for col, v := range j.extra {
		rec.Extra[col] = policy.Cell(v)
	}
	rec.AtRisk = labeler.Label(rec.AttendancePercentage, rec.AverageMarks)
	return rec
}
