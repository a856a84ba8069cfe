package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	data := "student_id, Name ,Marks Obtained,Weight\n" +
		" S1 , Alice ,85,1.5\n" +
		",,,\n" +
		"S2,Bob,,2\n" +
		"007,Carl,70,x\n"

	tbl, err := Read("assessments_file", strings.NewReader(data), KeyColumn, "MarksObtained")
	require.NoError(t, err)

	assert.Equal(t, []string{"student_id", "Name", "Marks Obtained", "Weight"}, tbl.Header, "headers are kept as found")
	assert.Equal(t, "StudentID", tbl.Column(0))
	assert.Equal(t, "MarksObtained", tbl.Column(2))
	assert.Equal(t, 3, tbl.Len(), "blank rows are skipped")
	assert.True(t, tbl.Has("Name"))
	assert.False(t, tbl.Has("Department"))

	assert.Equal(t, "S1", tbl.Value(0, KeyColumn))
	assert.Equal(t, "Alice", tbl.Value(0, "Name"))
	assert.Equal(t, "", tbl.Value(0, "Department"))

	assert.Equal(t, int64(85), tbl.Cell(0, "MarksObtained"))
	assert.Nil(t, tbl.Cell(1, "MarksObtained"))
	assert.Equal(t, "1.5", tbl.Cell(0, "Weight"), "mixed columns stay strings")
	assert.Equal(t, "007", tbl.Cell(2, KeyColumn), "the key column is never numeric")

	assert.Equal(t, int64(85), tbl.Cell(0, "Marks Obtained"), "lookups accept the raw name too")

	assert.Equal(t, map[string]interface{}{
		"student_id":     "S2",
		"Name":           "Bob",
		"Marks Obtained": nil,
		"Weight":         "2",
	}, tbl.Record(1))

	assert.Equal(t, []int{1}, tbl.Filter(KeyColumn, "S2"))
	assert.Nil(t, tbl.Filter(KeyColumn, "S9"))
	assert.Nil(t, tbl.Filter("Department", "CS"))
}

func TestRead_floats(t *testing.T) {
	tbl, err := Read("f", strings.NewReader("StudentID,Score\nA,1\nB,2.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, tbl.Cell(0, "Score"))
	assert.Equal(t, 2.5, tbl.Cell(1, "Score"))
}

func TestRead_rawHeaders(t *testing.T) {
	data := "\ufeffStudentID,test_date,remarks,MarksObtained\n" +
		"A,2024-01-01,ok,85\n"

	tbl, err := Read("assessments_file", strings.NewReader(data), KeyColumn, "MarksObtained")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"StudentID":     "A",
		"test_date":     "2024-01-01",
		"remarks":       "ok",
		"MarksObtained": int64(85),
	}, tbl.Record(0))
	assert.Equal(t, "ok", tbl.Value(0, "Remarks"))
}

func TestRead_missingValues(t *testing.T) {
	data := "StudentID,Score,Note,Ratio\n" +
		"NA,1.5,NA,Inf\n" +
		"B,NaN,null,2\n" +
		"C,N/A,fine,3\n"

	tbl, err := Read("f", strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "NA", tbl.Cell(0, KeyColumn), "the key column is never missing")
	assert.Equal(t, 1.5, tbl.Cell(0, "Score"))
	assert.Nil(t, tbl.Cell(1, "Score"))
	assert.Nil(t, tbl.Cell(2, "Score"))
	assert.Nil(t, tbl.Cell(0, "Note"))
	assert.Nil(t, tbl.Cell(1, "Note"))
	assert.Equal(t, "fine", tbl.Cell(2, "Note"))
	assert.Equal(t, "Inf", tbl.Cell(0, "Ratio"), "infinite values are not numbers")
	assert.Equal(t, "2", tbl.Cell(1, "Ratio"))
}

func TestRead_errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "empty file",
			data:    "",
			wantErr: "students_file: empty file",
		},
		{
			name:    "empty header",
			data:    "StudentID,,Name\nA,x,Alice\n",
			wantErr: "students_file: column 2 has an empty header",
		},
		{
			name:    "duplicate column",
			data:    "StudentID,student_id\nA,A\n",
			wantErr: `students_file: duplicate column "StudentID"`,
		},
		{
			name:    "missing column with suggestion",
			data:    "StudentID,Nmae,Department\nA,Alice,CS\n",
			wantErr: `students_file: missing required column "Name" (did you mean "Nmae"?)`,
		},
		{
			name:    "missing column without suggestion",
			data:    "StudentID,Department\nA,CS\n",
			wantErr: `students_file: missing required column "Name"`,
		},
		{
			name:    "ragged row",
			data:    "StudentID,Name,Department\nA,Alice\n",
			wantErr: "students_file: record on line 2: wrong number of fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("students_file", strings.NewReader(tt.data), KeyColumn, "Name", "Department")
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestRead_missingColumnError(t *testing.T) {
	_, err := Read("fees_file", strings.NewReader("StudentID,Stat\nA,Paid\n"), KeyColumn, "Status")
	var mErr *MissingColumnError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "fees_file", mErr.File)
	assert.Equal(t, "Status", mErr.Column)
	assert.Equal(t, "Stat", mErr.Suggestion)
}
