package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/infrastructure/report/xlsx"
)

var batchFlags struct {
	dir      string
	xlsxPath string
	parallel int
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify every file in a directory and print a report",
	Args:  cobra.NoArgs,
	RunE:  runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.dir, "dir", "files", "Directory of files to classify")
	f.StringVar(&batchFlags.xlsxPath, "xlsx", "", "Also write the report as an xlsx workbook")
	f.IntVar(&batchFlags.parallel, "parallel", 4, "Documents classified concurrently")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	paths, err := listFiles(batchFlags.dir)
	if err != nil {
		return err
	}
	results, err := classifyAll(cmd.Context(), p.Classifier, paths, batchFlags.parallel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printResults(out, results); err != nil {
		return err
	}
	if batchFlags.xlsxPath == "" {
		return nil
	}
	if err := writeWorkbook(batchFlags.xlsxPath, results); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nReport written to %s\n", batchFlags.xlsxPath)
	return nil
}

// classifyAll classifies files with at most parallel documents in flight.
// Results keep the order of paths. Admission rejections are reported in the
// result, not returned as errors.
func classifyAll(ctx context.Context, classifier ports.DocumentClassifier, paths []string, parallel int) ([]domain.ClassificationResult, error) {
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]domain.ClassificationResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			name := filepath.Base(path)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			result, _ := classifier.Classify(gctx, domain.NewDocument(name, data))
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResults(out io.Writer, results []domain.ClassificationResult) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Filename\tClass\tConfidence\tMethod\tError\n")
	fmt.Fprintf(w, "--------\t-----\t----------\t------\t-----\n")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%s\t%s\n", r.Filename, r.Label, r.Confidence*100, r.Method, r.Error)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	counts := make(map[domain.Label]int)
	for _, r := range results {
		if !r.Failed() {
			counts[r.Label]++
		}
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)

	fmt.Fprintf(out, "\nSummary:\n")
	for _, label := range labels {
		fmt.Fprintf(out, "%s: %d documents\n", label, counts[domain.Label(label)])
	}
	return nil
}

func writeWorkbook(path string, results []domain.ClassificationResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()
	if err := xlsx.Write(f, results); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
