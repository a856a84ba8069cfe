package risk_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/gbt"
	"github.com/trezcool/eudg/core/risk"
	inmemstore "github.com/trezcool/eudg/storage/inmem"
	"github.com/trezcool/eudg/tests"
)

func setup(t *testing.T) (*risk.Service, *inmemstore.SessionStore) {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	store := inmemstore.NewSessionStore()
	svc := risk.NewService(store, validate, translator, &testutil.Logger{}, core.NewConfig())
	return svc, store
}

func files(c testutil.Cohort) risk.Files {
	var f risk.Files
	f.Students, f.Attendance, f.Assessments, f.Fees = c.Readers()
	return f
}

func process(t *testing.T, svc *risk.Service, c testutil.Cohort) []risk.Summary {
	t.Helper()
	summaries, err := svc.Process(context.Background(), files(c))
	require.NoError(t, err)
	return summaries
}

func TestService_Process(t *testing.T) {
	svc, store := setup(t)
	summaries := process(t, svc, testutil.ThreeStudents())

	require.Len(t, summaries, 3)
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.StudentID
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids, "one line per student, in students file order")

	a, b, c := summaries[0], summaries[1], summaries[2]
	assert.Equal(t, risk.Summary{StudentID: "A", Name: "Alice", Department: "CS", AttendancePercentage: 100, AverageMarks: 90}, withoutScore(a))
	assert.Equal(t, 40.0, b.AttendancePercentage)
	assert.Equal(t, 30.0, b.AverageMarks)
	assert.Equal(t, 60.0, c.AttendancePercentage)
	assert.Equal(t, 70.0, c.AverageMarks)

	assert.Equal(t, 0, a.RiskPrediction)
	assert.Equal(t, 1, b.RiskPrediction)
	assert.Equal(t, 0, c.RiskPrediction)
	assert.Less(t, a.RiskScore, 0.5)
	assert.Greater(t, b.RiskScore, 0.5)
	assert.Greater(t, b.RiskScore, a.RiskScore)

	sess := store.Load()
	require.NotNil(t, sess)
	for _, rec := range sess.Table.Records {
		want := 0
		if rec.AttendancePercentage < 75 && rec.AverageMarks < 60 {
			want = 1
		}
		assert.Equal(t, want, rec.AtRisk, rec.StudentID)
	}
}

func withoutScore(s risk.Summary) risk.Summary {
	s.RiskPrediction, s.RiskScore = 0, 0
	return s
}

func TestService_Process_errors(t *testing.T) {
	valid := testutil.ThreeStudents()

	tests := []struct {
		name    string
		cohort  func(c testutil.Cohort) testutil.Cohort
		wantErr string
	}{
		{
			name: "missing column",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Fees = testutil.CSV("StudentID,Stat", "A,Paid")
				return c
			},
			wantErr: `fees_file: missing required column "Status" (did you mean "Stat"?)`,
		},
		{
			name: "bad marks",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Assessments = testutil.CSV("StudentID,MarksObtained", "A,90", "B,thirty")
				return c
			},
			wantErr: `assessments_file: line 3: MarksObtained: invalid number "thirty"`,
		},
		{
			name: "blank student ID",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Attendance = testutil.CSV("StudentID,Status", "A,Present", ",Absent")
				return c
			},
			wantErr: "attendance_file: line 3: StudentID: this field is required",
		},
		{
			name: "infinite marks",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Assessments = testutil.CSV("StudentID,MarksObtained", "A,90", "B,Inf")
				return c
			},
			wantErr: `assessments_file: line 3: MarksObtained: number "Inf" is not finite`,
		},
		{
			name: "duplicate student",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Students = testutil.CSV("StudentID,Name,Department", "A,Alice,CS", "A,Alice,CS")
				return c
			},
			wantErr: `students_file: line 3: StudentID: duplicate student "A" (first seen on line 2)`,
		},
		{
			name: "no students",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Students = testutil.CSV("StudentID,Name,Department")
				return c
			},
			wantErr: "students_file: no students",
		},
		{
			name: "empty file",
			cohort: func(c testutil.Cohort) testutil.Cohort {
				c.Attendance = ""
				return c
			},
			wantErr: "attendance_file: empty file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setup(t)
			summaries, err := svc.Process(context.Background(), files(tt.cohort(valid)))
			assert.Nil(t, summaries)

			var pErr *risk.ProcessingError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Nil(t, store.Load(), "nothing is published")
		})
	}
}

func TestService_Process_missingMarks(t *testing.T) {
	svc, _ := setup(t)
	cohort := testutil.ThreeStudents()
	cohort.Assessments = testutil.CSV(
		"StudentID,Subject,MarksObtained",
		"A,Maths,85",
		"A,Physics,NaN",
		"A,Chemistry,NA",
		"B,Maths,30",
		"B,Physics,N/A",
		"C,Maths,70",
		"C,Physics,null",
	)

	summaries := process(t, svc, cohort)
	require.Len(t, summaries, 3)
	assert.Equal(t, 85.0, summaries[0].AverageMarks, "missing marks are skipped")
	assert.Equal(t, 30.0, summaries[1].AverageMarks)
	assert.Equal(t, 70.0, summaries[2].AverageMarks)

	_, err := json.Marshal(summaries)
	require.NoError(t, err)

	details, err := svc.StudentDetails(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, details.AssessmentTrend, 3)
	assert.Nil(t, details.AssessmentTrend[1]["MarksObtained"])
	_, err = json.Marshal(details)
	require.NoError(t, err)
}

func TestService_Process_slashedIDs(t *testing.T) {
	svc, _ := setup(t)
	cohort := testutil.ThreeStudents()
	for _, c := range []*string{&cohort.Students, &cohort.Attendance, &cohort.Assessments, &cohort.Fees} {
		*c = strings.NewReplacer("\nA,", "\n2024/001,", "\nB,", "\n2024/002,", "\nC,", "\n2024#003,").Replace(*c)
	}

	summaries := process(t, svc, cohort)
	require.Len(t, summaries, 3)
	assert.Equal(t, "2024/001", summaries[0].StudentID)
	assert.Equal(t, "2024#003", summaries[2].StudentID)

	details, err := svc.StudentDetails(context.Background(), "2024/002")
	require.NoError(t, err)
	assert.Equal(t, "Bob", details.MainData["Name"])
	assert.Len(t, details.AssessmentTrend, 1)
}

func TestService_StudentDetails_rawColumns(t *testing.T) {
	svc, _ := setup(t)
	cohort := testutil.ThreeStudents()
	cohort.Students = testutil.CSV(
		"student_id,Name,Department,email",
		"A,Alice,CS,alice@test.cd",
		"B,Bob,CS,",
		"C,Cara,Math,cara@test.cd",
	)
	cohort.Assessments = testutil.CSV(
		"StudentID,test_date,remarks,MarksObtained",
		"A,2024-01-01,ok,85",
		"A,2024-02-01,good,95",
		"B,2024-01-01,weak,30",
		"C,2024-01-01,fine,70",
	)
	process(t, svc, cohort)

	details, err := svc.StudentDetails(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "alice@test.cd", details.MainData["email"])
	assert.NotContains(t, details.MainData, "Email")
	assert.Equal(t, []map[string]interface{}{
		{"StudentID": "A", "test_date": "2024-01-01", "remarks": "ok", "MarksObtained": int64(85)},
		{"StudentID": "A", "test_date": "2024-02-01", "remarks": "good", "MarksObtained": int64(95)},
	}, details.AssessmentTrend)
}

func TestService_Process_canceled(t *testing.T) {
	svc, store := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, files(testutil.ThreeStudents()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, store.Load())
}

func TestService_Process_failureKeepsSession(t *testing.T) {
	svc, store := setup(t)
	process(t, svc, testutil.ThreeStudents())
	before := store.Load()

	broken := testutil.TwoStudents()
	broken.Students = "garbage"
	_, err := svc.Process(context.Background(), files(broken))
	require.Error(t, err)

	assert.Same(t, before, store.Load())
	_, err = svc.StudentDetails(context.Background(), "B")
	assert.NoError(t, err)
}

func TestService_Process_supersedes(t *testing.T) {
	svc, store := setup(t)
	process(t, svc, testutil.ThreeStudents())
	first := store.Load()

	process(t, svc, testutil.TwoStudents())
	second := store.Load()
	assert.NotEqual(t, first.ID, second.ID)

	_, err := svc.StudentDetails(context.Background(), "B")
	assert.Equal(t, risk.ErrStudentNotFound, err)

	details, err := svc.StudentDetails(context.Background(), "D")
	require.NoError(t, err)
	assert.Equal(t, "Dan", details.MainData["Name"])
}

func TestService_StudentDetails(t *testing.T) {
	svc, store := setup(t)
	process(t, svc, testutil.ThreeStudents())
	sess := store.Load()

	for _, id := range []string{"A", "B", "C"} {
		t.Run(id, func(t *testing.T) {
			details, err := svc.StudentDetails(context.Background(), id)
			require.NoError(t, err)

			exp := details.Explanation
			assert.Equal(t, sess.Schema.Names(), exp.FeatureNames)
			assert.Len(t, exp.ShapValues, len(exp.FeatureNames))
			assert.Len(t, exp.FeatureValues, len(exp.FeatureNames))

			rec, _ := sess.Table.Lookup(id)
			assert.Equal(t, sess.Schema.Encode(rec), exp.FeatureValues)
			margin := sess.Model.Margin(exp.FeatureValues)
			assert.InDelta(t, margin, exp.BaseValue+floats.Sum(exp.ShapValues), 1e-9)
			assert.InDelta(t, rec.RiskScore, gbt.Sigmoid(margin), 1e-12)

			assert.Equal(t, id, details.MainData["StudentID"])
			assert.Equal(t, rec.AtRisk, details.MainData["AtRisk"])
			assert.Equal(t, rec.RiskPrediction, details.MainData["RiskPrediction"])
		})
	}

	details, err := svc.StudentDetails(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"AttendancePercentage", "AverageMarks", "Department_Math", "FeeStatus_Unpaid",
	}, details.Explanation.FeatureNames)
	assert.Equal(t, []float64{100, 90, 0, 0}, details.Explanation.FeatureValues)
	assert.Equal(t, []map[string]interface{}{
		{"StudentID": "A", "Subject": "Maths", "MarksObtained": int64(85)},
		{"StudentID": "A", "Subject": "Physics", "MarksObtained": int64(95)},
	}, details.AssessmentTrend)

	// the single-row encoding keeps the student's own category
	details, err = svc.StudentDetails(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 70, 1, 0}, details.Explanation.FeatureValues)
}

func TestService_StudentDetails_noAssessments(t *testing.T) {
	svc, _ := setup(t)
	cohort := testutil.ThreeStudents()
	cohort.Assessments = testutil.CSV("StudentID,MarksObtained", "A,90", "B,30")
	process(t, svc, cohort)

	details, err := svc.StudentDetails(context.Background(), "C")
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{}, details.AssessmentTrend)
	assert.Equal(t, 0.0, details.MainData["AverageMarks"])

	data, err := json.Marshal(details)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"assessment_trend":[]`))
}

func TestService_notProcessed(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.StudentDetails(ctx, "A")
	assert.Equal(t, risk.ErrNotProcessed, err)
	_, err = svc.SessionInfo(ctx)
	assert.Equal(t, risk.ErrNotProcessed, err)
	_, err = svc.Artifact(ctx)
	assert.Equal(t, risk.ErrNotProcessed, err)
}

func TestService_StudentDetails_notFound(t *testing.T) {
	svc, _ := setup(t)
	process(t, svc, testutil.ThreeStudents())

	_, err := svc.StudentDetails(context.Background(), "Z")
	assert.Equal(t, risk.ErrStudentNotFound, err)
}

func TestService_SessionInfo(t *testing.T) {
	svc, _ := setup(t)
	process(t, svc, testutil.ThreeStudents())

	info, err := svc.SessionInfo(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 3, info.Students)
	assert.Equal(t, 1, info.AtRisk)
	assert.Equal(t, 1, info.PredictedAtRisk)
	assert.Equal(t, "UTC", info.CreatedAt.Location().String())
	assert.Len(t, info.FeatureNames, 4)
}

func TestService_Artifact(t *testing.T) {
	svc, store := setup(t)
	process(t, svc, testutil.ThreeStudents())

	artifact, err := svc.Artifact(context.Background())
	require.NoError(t, err)
	data, err := json.Marshal(artifact)
	require.NoError(t, err)

	var loaded risk.ModelArtifact
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.NoError(t, loaded.Schema.Validate())
	assert.Equal(t, store.Load().ID, loaded.SessionID)

	for _, rec := range store.Load().Table.Records {
		x := loaded.Schema.Encode(rec)
		assert.Equal(t, store.Load().Model.Margin(x), loaded.Model.Margin(x), rec.StudentID)
	}
}
