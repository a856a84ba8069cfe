package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/trezcool/eudg/core/gbt"
	"github.com/trezcool/eudg/core/risk"
)

var (
	raisesRiskColor  = color.RGBA{R: 255, G: 0, B: 81, A: 255}
	lowersRiskColor  = color.RGBA{R: 0, G: 139, B: 251, A: 255}
	plotWidth        = 6 * vg.Inch
	plotMinHeight    = 3 * vg.Inch
	plotHeightPerBar = vg.Points(24)
)

// explain trains on the cohort and prints the attribution of the student's risk score,
// largest contributions first.
func (cli *commandLine) explain(in inputFlags, studentID, plotPath string) error {
	if _, err := cli.process(in); err != nil {
		return err
	}
	details, err := cli.svc.StudentDetails(context.Background(), studentID)
	if err != nil {
		return errors.Wrapf(err, "explaining %q", studentID)
	}
	exp := details.Explanation

	order := make([]int, len(exp.FeatureNames))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(exp.ShapValues[order[a]]) > math.Abs(exp.ShapValues[order[b]])
	})

	fmt.Fprintf(cli.out, "Student %s (%v)\n", studentID, details.MainData[risk.ColName])
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Feature", "Value", "SHAP"})
	table.SetAutoFormatHeaders(false)
	for _, i := range order {
		table.Append([]string{
			exp.FeatureNames[i],
			formatFloat(exp.FeatureValues[i]),
			fmt.Sprintf("%+.4f", exp.ShapValues[i]),
		})
	}
	table.Render()

	margin := exp.BaseValue + floats.Sum(exp.ShapValues)
	fmt.Fprintf(cli.out, "base value: %.4f\n", exp.BaseValue)
	fmt.Fprintf(cli.out, "margin: %.4f\n", margin)
	fmt.Fprintf(cli.out, "risk score: %.4f\n", gbt.Sigmoid(margin))

	if plotPath != "" {
		title := fmt.Sprintf("Risk attribution for %s", studentID)
		if err = plotExplanation(exp, title, plotPath); err != nil {
			return errors.Wrap(err, "plotting explanation")
		}
		fmt.Fprintf(cli.out, "Saved attribution plot to %s\n", plotPath)
	}
	return nil
}

// plotExplanation renders the attribution as a horizontal bar chart, one bar per feature.
func plotExplanation(exp risk.Explanation, title, path string) error {
	n := len(exp.ShapValues)
	raises := make(plotter.Values, n)
	lowers := make(plotter.Values, n)
	for i, v := range exp.ShapValues {
		if v >= 0 {
			raises[i] = v
		} else {
			lowers[i] = v
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "SHAP value (log-odds)"
	p.Add(plotter.NewGrid())

	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{
		{raises, raisesRiskColor},
		{lowers, lowersRiskColor},
	} {
		bars, err := plotter.NewBarChart(series.values, plotHeightPerBar/2)
		if err != nil {
			return err
		}
		bars.Horizontal = true
		bars.Color = series.color
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalY(exp.FeatureNames...)

	height := vg.Length(n+2) * plotHeightPerBar
	if height < plotMinHeight {
		height = plotMinHeight
	}
	return p.Save(plotWidth, height, path)
}
