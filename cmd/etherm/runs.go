package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/etherm/internal/storage"
)

const maxPlots = 6

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tELEMENTS\tMIN\tMAX\tSTATUS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Elements,
			run.Min,
			run.Max,
			status(run),
		)
	}

	return w.Flush()
}

func status(run storage.RunMetadata) string {
	switch {
	case run.Converged == nil:
		return fmt.Sprintf("%gs", run.Duration)
	case *run.Converged:
		return fmt.Sprintf("converged/%d", run.Iterations)
	default:
		return fmt.Sprintf("capped/%d", run.Iterations)
	}
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	id, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	meta, err := st.Load(id)
	if err != nil {
		return err
	}

	rows := [][2]string{
		{"model", fmt.Sprintf("%s (%d elements)", meta.Model, meta.Elements)},
		{"created", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"status", status(*meta)},
		{"min", fmt.Sprintf("%.3f %s", meta.Min, meta.Unit)},
		{"max", fmt.Sprintf("%.3f %s", meta.Max, meta.Unit)},
	}
	if meta.Converged != nil {
		rows = append(rows, [2]string{"residual", fmt.Sprintf("%.4g", meta.Residual)})
	} else {
		rows = append(rows, [2]string{"integrator", meta.Integrator})
		if meta.MOROrder > 0 {
			rows = append(rows, [2]string{"order", strconv.Itoa(meta.MOROrder)})
		}
		if len(meta.Probes) > 0 {
			rows = append(rows, [2]string{"probes", fmt.Sprint(meta.Probes)})
		}
	}
	for _, name := range sortedKeys(meta.Metrics) {
		rows = append(rows, [2]string{name, fmt.Sprintf("%.4g", meta.Metrics[name])})
	}
	rows = append(rows, [2]string{"files", fmt.Sprint(meta.Files)})
	printSummary(meta.ID, rows)
	return nil
}

// plotRun draws probe series for transient runs and the per-element profile
// of the hotmap for static runs.
func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	id, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	meta, err := st.Load(id)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	series, err := st.LoadProbes(id)
	switch {
	case err == nil:
		return plotProbes(series, meta.Unit)
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	temps, err := st.LoadHotmap(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no data to plot")
		}
		return err
	}
	fmt.Println(asciigraph.Plot(temps,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("temperature [%s] by element", meta.Unit)),
	))
	return nil
}

func plotProbes(series *storage.ProbeSeries, unit string) error {
	if series.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}
	n := len(series.Probes)
	if n > maxPlots {
		n = maxPlots
	}
	for p := 0; p < n; p++ {
		data := make([]float64, series.Len())
		for i, row := range series.Values {
			data[i] = row[p]
		}
		caption := fmt.Sprintf("node %d [%s] over %.4gs", series.Probes[p], unit, series.Times[series.Len()-1])
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	id, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	return st.Export(os.Stdout, id)
}
