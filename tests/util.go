package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Cohort holds the four CSV inputs of a pipeline run.
type Cohort struct {
	Students    string
	Attendance  string
	Assessments string
	Fees        string
}

// ThreeStudents is a small cohort where only B is at risk:
//  - A: 100% attendance, 90 marks
//  - B: 40% attendance, 30 marks
//  - C: 60% attendance, 70 marks
func ThreeStudents() Cohort {
	return Cohort{
		Students: CSV(
			"StudentID,Name,Department",
			"A,Alice,CS",
			"B,Bob,CS",
			"C,Cara,Math",
		),
		Attendance: CSV(
			"StudentID,Date,Status",
			"A,2024-01-01,Present",
			"A,2024-01-02,Present",
			"B,2024-01-01,Present",
			"B,2024-01-02,Absent",
			"B,2024-01-03,Present",
			"B,2024-01-04,Absent",
			"B,2024-01-05,Absent",
			"C,2024-01-01,Present",
			"C,2024-01-02,Absent",
			"C,2024-01-03,Present",
			"C,2024-01-04,Absent",
			"C,2024-01-05,Present",
		),
		Assessments: CSV(
			"StudentID,Subject,MarksObtained",
			"A,Maths,85",
			"A,Physics,95",
			"B,Maths,30",
			"C,Maths,70",
		),
		Fees: CSV(
			"StudentID,Status",
			"A,Paid",
			"B,Unpaid",
			"C,Paid",
		),
	}
}

// TwoStudents is a cohort sharing no student with ThreeStudents except A.
func TwoStudents() Cohort {
	return Cohort{
		Students: CSV(
			"StudentID,Name,Department",
			"A,Alice,CS",
			"D,Dan,Physics",
		),
		Attendance: CSV(
			"StudentID,Status",
			"A,Present",
			"D,Absent",
		),
		Assessments: CSV(
			"StudentID,MarksObtained",
			"A,88",
			"D,20",
		),
		Fees: CSV(
			"StudentID,Status",
			"A,Paid",
			"D,Unpaid",
		),
	}
}

// CSV joins the lines with newlines.
func CSV(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// Readers returns the cohort files as readers, in students, attendance, assessments, fees order.
func (c Cohort) Readers() (io.Reader, io.Reader, io.Reader, io.Reader) {
	return strings.NewReader(c.Students),
		strings.NewReader(c.Attendance),
		strings.NewReader(c.Assessments),
		strings.NewReader(c.Fees)
}

// Form returns the cohort as multipart file fields.
func (c Cohort) Form() map[string]string {
	return map[string]string{
		"students_file":    c.Students,
		"attendance_file":  c.Attendance,
		"assessments_file": c.Assessments,
		"fees_file":        c.Fees,
	}
}

// MultipartBody encodes the files as a multipart form, returning the body and its content type.
func MultipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	fields := make([]string, 0, len(files))
	for field := range files {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, field := range fields {
		part, err := w.CreateFormFile(field, field+".csv")
		if err != nil {
			t.Fatalf("MultipartBody() failed: %v", err)
		}
		if _, err = io.WriteString(part, files[field]); err != nil {
			t.Fatalf("MultipartBody() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("MultipartBody() failed: %v", err)
	}
	return &body, w.FormDataContentType()
}

// Logger is a core.Logger keeping the logged messages in memory.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }
