package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core/risk"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatCSV   = "csv"
)

var summaryHeader = []string{
	risk.ColStudentID,
	risk.ColName,
	risk.ColDepartment,
	risk.ColAttendancePercentage,
	risk.ColAverageMarks,
	risk.ColRiskPrediction,
	risk.ColRiskScore,
}

// score trains on the cohort, prints the summary and optionally saves the model.
func (cli *commandLine) score(in inputFlags, format, modelPath string) error {
	switch format {
	case formatAuto:
		format = formatCSV
		if isTerminalFunc() {
			format = formatTable
		}
	case formatTable, formatCSV:
	default:
		return errors.Errorf("unknown format %q", format)
	}

	summaries, err := cli.process(in)
	if err != nil {
		return err
	}

	if modelPath != "" {
		if err = cli.saveModel(modelPath); err != nil {
			return err
		}
	}

	if format == formatTable {
		return cli.printTable(summaries)
	}
	return cli.printCSV(summaries)
}

func (cli *commandLine) saveModel(path string) error {
	artifact, err := cli.svc.Artifact(context.Background())
	if err != nil {
		return errors.Wrap(err, "getting model")
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding model")
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "saving model")
	}
	return nil
}

func (cli *commandLine) printTable(summaries []risk.Summary) error {
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader(summaryHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range summaries {
		table.Append([]string{
			s.StudentID,
			s.Name,
			s.Department,
			fmt.Sprintf("%.1f", s.AttendancePercentage),
			fmt.Sprintf("%.1f", s.AverageMarks),
			strconv.Itoa(s.RiskPrediction),
			fmt.Sprintf("%.3f", s.RiskScore),
		})
	}
	table.Render()
	return nil
}

func (cli *commandLine) printCSV(summaries []risk.Summary) error {
	w := csv.NewWriter(cli.out)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		err := w.Write([]string{
			s.StudentID,
			s.Name,
			s.Department,
			formatFloat(s.AttendancePercentage),
			formatFloat(s.AverageMarks),
			strconv.Itoa(s.RiskPrediction),
			formatFloat(s.RiskScore),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
