package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/eudg/core/risk"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	svc risk.ServiceInterface
	out io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  score -students F -attendance F -assessments F -fees F [-format auto|table|csv] [-model OUT.json] - train on a cohort and print its risk scores")
	fmt.Fprintln(cli.out, "  explain -students F -attendance F -assessments F -fees F -student ID [-plot OUT.png] - explain a student's risk score")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	scoreCmd := flag.NewFlagSet("score", flag.ContinueOnError)
	scoreInputs := addInputFlags(scoreCmd)
	scoreFormat := scoreCmd.String("format", formatAuto, "Output format: auto, table or csv. auto prints a table on a terminal and CSV otherwise.")
	scoreModel := scoreCmd.String("model", "", "Write the trained model and its feature schema to this JSON file.")

	explainCmd := flag.NewFlagSet("explain", flag.ContinueOnError)
	explainInputs := addInputFlags(explainCmd)
	explainStudent := explainCmd.String("student", "", "The ID of the student to explain.")
	explainPlot := explainCmd.String("plot", "", "Render the attribution as a bar chart to this PNG file.")

	switch args[1] {
	case "score":
		if err := cli.parse(scoreCmd, args[2:]); err != nil {
			return err
		}
		if scoreInputs.missing() {
			scoreCmd.Usage()
			return errHelp
		}
		return cli.score(scoreInputs, *scoreFormat, *scoreModel)
	case "explain":
		if err := cli.parse(explainCmd, args[2:]); err != nil {
			return err
		}
		if explainInputs.missing() || *explainStudent == "" {
			explainCmd.Usage()
			return errHelp
		}
		return cli.explain(explainInputs, *explainStudent, *explainPlot)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(cli.out)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

// process runs the pipeline on the input files.
func (cli *commandLine) process(in inputFlags) ([]risk.Summary, error) {
	files, closeAll, err := in.open()
	if err != nil {
		return nil, err
	}
	defer closeAll()
	return cli.svc.Process(context.Background(), files)
}

type inputFlags struct {
	students    *string
	attendance  *string
	assessments *string
	fees        *string
}

func addInputFlags(fs *flag.FlagSet) inputFlags {
	return inputFlags{
		students:    fs.String("students", "", "The students CSV file (StudentID, Name, Department, ...)."),
		attendance:  fs.String("attendance", "", "The attendance CSV file (StudentID, Status, ...)."),
		assessments: fs.String("assessments", "", "The assessments CSV file (StudentID, MarksObtained, ...)."),
		fees:        fs.String("fees", "", "The fees CSV file (StudentID, Status, ...)."),
	}
}

func (in inputFlags) missing() bool {
	return *in.students == "" || *in.attendance == "" || *in.assessments == "" || *in.fees == ""
}

func (in inputFlags) open() (risk.Files, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	var files risk.Files
	for _, input := range []struct {
		path string
		dst  *io.Reader
	}{
		{*in.students, &files.Students},
		{*in.attendance, &files.Attendance},
		{*in.assessments, &files.Assessments},
		{*in.fees, &files.Fees},
	} {
		f, err := os.Open(input.path)
		if err != nil {
			closeAll()
			return risk.Files{}, nil, err
		}
		opened = append(opened, f)
		*input.dst = f
	}
	return files, closeAll, nil
}
