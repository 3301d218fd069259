package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var resultsHeader = []any{"Filename", "Predicted class", "Confidence", "Method", "Error"}

// Write renders batch classification results as a workbook with a per-file
// sheet and a per-label summary sheet.
func Write(w io.Writer, results []domain.ClassificationResult) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeResults(f, results, headerStyle); err != nil {
		return err
	}
	if err := writeSummary(f, results, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, results []domain.ClassificationResult, headerStyle int) error {
	if err := setRow(f, resultsSheet, 1, resultsHeader); err != nil {
		return err
	}
	for i, result := range results {
		row := []any{
			result.Filename,
			string(result.Label),
			domain.ClampConfidence(result.Confidence),
			string(result.Method),
			result.Error,
		}
		if err := setRow(f, resultsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(resultsSheet, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(resultsSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(resultsSheet, "B", "E", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if len(results) > 0 {
		last, err := excelize.CoordinatesToCellName(len(resultsHeader), len(results)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(resultsSheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("set autofilter: %w", err)
		}
	}
	return nil
}

type labelSummary struct {
	label         domain.Label
	total         int
	byContent     int
	byFilename    int
	errors        int
	confidenceSum float64
}

func summarize(results []domain.ClassificationResult) []labelSummary {
	byLabel := make(map[domain.Label]*labelSummary)
	for _, result := range results {
		s, ok := byLabel[result.Label]
		if !ok {
			s = &labelSummary{label: result.Label}
			byLabel[result.Label] = s
		}
		s.total++
		s.confidenceSum += domain.ClampConfidence(result.Confidence)
		switch result.Method {
		case domain.MethodContent:
			s.byContent++
		case domain.MethodFilename:
			s.byFilename++
		default:
			s.errors++
		}
	}
	out := make([]labelSummary, 0, len(byLabel))
	for _, s := range byLabel {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].total != out[j].total {
			return out[i].total > out[j].total
		}
		return out[i].label < out[j].label
	})
	return out
}

func writeSummary(f *excelize.File, results []domain.ClassificationResult, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	header := []any{"Label", "Documents", "By content", "By filename", "Errors", "Mean confidence"}
	if err := setRow(f, summarySheet, 1, header); err != nil {
		return err
	}
	for i, s := range summarize(results) {
		mean := 0.0
		if s.total > 0 {
			mean = s.confidenceSum / float64(s.total)
		}
		row := []any{string(s.label), s.total, s.byContent, s.byFilename, s.errors, mean}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
