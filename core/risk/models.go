package risk

import (
	"io"
	"time"

	"github.com/trezcool/eudg/core/dataset"
	"github.com/trezcool/eudg/core/gbt"
)

// Column names of the consolidated table.
const (
	ColStudentID            = dataset.KeyColumn
	ColName                 = "Name"
	ColDepartment           = "Department"
	ColStatus               = "Status"
	ColMarksObtained        = "MarksObtained"
	ColAttendancePercentage = "AttendancePercentage"
	ColAverageMarks         = "AverageMarks"
	ColFeeStatus            = "FeeStatus"
	ColAtRisk               = "AtRisk"
	ColRiskPrediction       = "RiskPrediction"
	ColRiskScore            = "RiskScore"

	// StatusPresent is the attendance status counted as attended.
	StatusPresent = "Present"
)

// Upload field names, also used to name the tables in errors.
const (
	FieldStudents    = "students_file"
	FieldAttendance  = "attendance_file"
	FieldAssessments = "assessments_file"
	FieldFees        = "fees_file"
)

type (
	// Files are the four delimited inputs of a pipeline run.
	Files struct {
		Students    io.Reader
		Attendance  io.Reader
		Assessments io.Reader
		Fees        io.Reader
	}

	// StudentRecord is one row of the consolidated table.
	StudentRecord struct {
		StudentID            string
		Name                 string
		Department           string
		AttendancePercentage float64
		AverageMarks         float64
		FeeStatus            string
		AtRisk               int
		RiskPrediction       int
		RiskScore            float64

		// Extra holds the other columns of the students file, typed and zero-filled.
		Extra map[string]interface{}
	}

	// Summary is the per-student line returned by a pipeline run.
	Summary struct {
		StudentID            string  `json:"StudentID"`
		Name                 string  `json:"Name"`
		Department           string  `json:"Department"`
		AttendancePercentage float64 `json:"AttendancePercentage"`
		AverageMarks         float64 `json:"AverageMarks"`
		RiskPrediction       int     `json:"RiskPrediction"`
		RiskScore            float64 `json:"RiskScore"`
	}

	// Explanation is a local feature attribution of a student's risk margin.
	// ShapValues, FeatureNames and FeatureValues are aligned.
	Explanation struct {
		BaseValue     float64   `json:"base_value"`
		ShapValues    []float64 `json:"shap_values"`
		FeatureNames  []string  `json:"feature_names"`
		FeatureValues []float64 `json:"feature_values"`
	}

	// StudentDetails is everything known about one student in the current session.
	StudentDetails struct {
		MainData        map[string]interface{}   `json:"main_data"`
		AssessmentTrend []map[string]interface{} `json:"assessment_trend"`
		Explanation     Explanation              `json:"shap_explanation"`
	}

	// SessionInfo describes the current session.
	SessionInfo struct {
		ID              string    `json:"id"`
		CreatedAt       time.Time `json:"created_at"` // UTC
		Students        int       `json:"students"`
		AtRisk          int       `json:"at_risk"`
		PredictedAtRisk int       `json:"predicted_at_risk"`
		FeatureNames    []string  `json:"feature_names"`
	}

	// ModelArtifact is the serializable pairing of a trained model and its feature schema.
	ModelArtifact struct {
		SessionID string        `json:"session_id"`
		CreatedAt time.Time     `json:"created_at"`
		Schema    FeatureSchema `json:"schema"`
		Model     *gbt.Booster  `json:"model"`
	}
)

// Summary returns the summary line of the record.
func (r StudentRecord) Summary() Summary {
	return Summary{
		StudentID:            r.StudentID,
		Name:                 r.Name,
		Department:           r.Department,
		AttendancePercentage: r.AttendancePercentage,
		AverageMarks:         r.AverageMarks,
		RiskPrediction:       r.RiskPrediction,
		RiskScore:            r.RiskScore,
	}
}

// Map returns the full row: every students column plus the derived ones.
func (r StudentRecord) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Extra)+9)
	for k, v := range r.Extra {
		m[k] = v
	}
	m[ColStudentID] = r.StudentID
	m[ColName] = r.Name
	m[ColDepartment] = r.Department
	m[ColAttendancePercentage] = r.AttendancePercentage
	m[ColAverageMarks] = r.AverageMarks
	m[ColFeeStatus] = r.FeeStatus
	m[ColAtRisk] = r.AtRisk
	m[ColRiskPrediction] = r.RiskPrediction
	m[ColRiskScore] = r.RiskScore
	return m
}

// ConsolidatedTable is the joined, labeled and scored student table, in students file order.
type ConsolidatedTable struct {
	Records []StudentRecord
	index   map[string]int
}

func newConsolidatedTable(records []StudentRecord) *ConsolidatedTable {
	tbl := &ConsolidatedTable{Records: records, index: make(map[string]int, len(records))}
	for i, rec := range records {
		tbl.index[rec.StudentID] = i
	}
	return tbl
}

// Lookup returns the record of the student.
func (t *ConsolidatedTable) Lookup(studentID string) (StudentRecord, bool) {
	i, ok := t.index[studentID]
	if !ok {
		return StudentRecord{}, false
	}
	return t.Records[i], true
}

// Summaries returns the summary lines in table order.
func (t *ConsolidatedTable) Summaries() []Summary {
	out := make([]Summary, len(t.Records))
	for i, rec := range t.Records {
		out[i] = rec.Summary()
	}
	return out
}

// Session is the immutable bundle produced by one pipeline run.
type Session struct {
	ID          string
	CreatedAt   time.Time
	Table       *ConsolidatedTable
	Model       *gbt.Booster
	Schema      FeatureSchema
	Assessments *dataset.Table
}

// Info summarizes the session.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Students:     len(s.Table.Records),
		FeatureNames: s.Schema.Names(),
	}
	for _, rec := range s.Table.Records {
		info.AtRisk += rec.AtRisk
		info.PredictedAtRisk += rec.RiskPrediction
	}
	return info
}

// Artifact returns the model paired with its schema.
func (s *Session) Artifact() ModelArtifact {
	return ModelArtifact{SessionID: s.ID, CreatedAt: s.CreatedAt, Schema: s.Schema, Model: s.Model}
}
