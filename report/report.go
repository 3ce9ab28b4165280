// Package report renders sweep results: a per-pipeline summary table and a
// box plot of the bias-corrected scores across seeds.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ahmedalbuni/biorad/experiment"
	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// WriteTable writes one aligned row per pipeline.
func WriteTable(w io.Writer, summaries []experiment.PipelineSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PIPELINE\tEXPERIMENTS\tFAILED\tBBC MEAN\tBBC STD\tCI LOWER\tCI UPPER\tCV LOSS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.PipelineID, s.Experiments, s.Failed,
			num(s.MeanScore), num(s.StdScore), num(s.MeanLower), num(s.MeanUpper), num(s.MeanTestLoss))
	}
	return errors.Wrap(tw.Flush(), "writing summary table")
}

func num(v float64) string {
	return strings.TrimSpace(fmt.Sprintf("%8.4f", v))
}

// BoxPlot builds a box plot with one box per pipeline that has at least
// one valid score.
func BoxPlot(summaries []experiment.PipelineSummary, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "BBC score"

	var names []string
	for _, s := range summaries {
		if len(s.Scores) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), plotter.Values(s.Scores))
		if err != nil {
			return nil, errors.Wrapf(err, "box for %s", s.PipelineID)
		}
		p.Add(box)
		names = append(names, s.PipelineID)
	}
	if len(names) == 0 {
		return nil, errors.NewModelError("report.BoxPlot", "no valid scores", errors.ErrEmptyData)
	}
	p.NominalX(names...)
	return p, nil
}

// WriteBoxPlot renders the box plot to w in format ("png", "svg", "pdf").
func WriteBoxPlot(w io.Writer, summaries []experiment.PipelineSummary, title, format string) error {
	p, err := BoxPlot(summaries, title)
	if err != nil {
		return err
	}
	width := vg.Length(max(4, len(summaries))) * vg.Inch
	wt, err := p.WriterTo(width, 4*vg.Inch, format)
	if err != nil {
		return errors.Wrap(err, "rendering box plot")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "writing box plot")
}

// SaveBoxPlot writes the box plot to path; the extension picks the format.
func SaveBoxPlot(path string, summaries []experiment.PipelineSummary, title string) error {
	p, err := BoxPlot(summaries, title)
	if err != nil {
		return err
	}
	width := vg.Length(max(4, len(summaries))) * vg.Inch
	return errors.Wrap(p.Save(width, 4*vg.Inch, path), "saving box plot")
}
