package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/model"
)

// Report column names. Per-label percentage columns sit between textColumn
// and predictedColumn, in declared label order.
const (
	textColumn        = "text"
	predictedColumn   = "predicted_label"
	groundTruthColumn = "hand_annotated"
)

// reportHeader builds the column header for a report. The ground-truth
// column appears only when the run carried annotations.
func reportHeader(report *model.RunReport) []string {
	header := make([]string, 0, len(report.Labels)+3)
	header = append(header, textColumn)
	header = append(header, report.Labels...)
	header = append(header, predictedColumn)
	if report.AnyGroundTruth() {
		header = append(header, groundTruthColumn)
	}
	return header
}

// reportRow renders one result row into the header's column order.
func reportRow(row model.ResultRow, report *model.RunReport) []string {
	out := make([]string, 0, len(report.Labels)+3)
	out = append(out, row.Text)
	for _, l := range report.Labels {
		out = append(out, strconv.FormatFloat(row.Percentages[l], 'f', 2, 64))
	}
	out = append(out, row.Predicted)
	if report.AnyGroundTruth() {
		out = append(out, row.GroundTruth)
	}
	return out
}

// WriteCSV writes the report to path as CSV, creating the parent directory
// and truncating any existing file. Percentages serialize with exactly two
// decimals so a read-back recovers the rounded values.
func WriteCSV(report *model.RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "report: create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader(report)); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, row := range report.Rows {
		if err := w.Write(reportRow(row, report)); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "report: close file")
	}

	zap.L().Info("report: written",
		zap.String("path", path),
		zap.Int("rows", len(report.Rows)),
	)
	return nil
}

// WriteXLSX writes the report as a single-sheet XLSX workbook mirroring the
// CSV layout.
func WriteXLSX(report *model.RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "report: create output directory")
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, col := range reportHeader(report) {
		headerRow.AddCell().Value = col
	}

	withTruth := report.AnyGroundTruth()
	for _, row := range report.Rows {
		r := sheet.AddRow()
		r.AddCell().Value = row.Text
		for _, l := range report.Labels {
			r.AddCell().SetFloatWithFormat(row.Percentages[l], "0.00")
		}
		r.AddCell().Value = row.Predicted
		if withTruth {
			r.AddCell().Value = row.GroundTruth
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}

	zap.L().Info("report: written",
		zap.String("path", path),
		zap.Int("rows", len(report.Rows)),
	)
	return nil
}

// ReadCSV reads a report previously written by WriteCSV. The label set is
// recovered from the header columns.
func ReadCSV(path string) (*model.RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "report: read csv")
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("report: %s is empty", path)
	}

	header := rows[0]
	if len(header) < 3 || header[0] != textColumn {
		return nil, eris.Errorf("report: unexpected header %v", header)
	}

	predictedIdx := -1
	for i, col := range header {
		if col == predictedColumn {
			predictedIdx = i
			break
		}
	}
	if predictedIdx < 2 {
		return nil, eris.Errorf("report: missing %s column", predictedColumn)
	}
	withTruth := predictedIdx+1 < len(header) && header[predictedIdx+1] == groundTruthColumn

	report := &model.RunReport{Labels: model.LabelSet(header[1:predictedIdx])}
	for i, rec := range rows[1:] {
		if len(rec) != len(header) {
			return nil, eris.Errorf("report: row %d has %d columns, want %d", i+1, len(rec), len(header))
		}
		row := model.ResultRow{
			Text:        rec[0],
			Percentages: make(map[string]float64, len(report.Labels)),
			Predicted:   rec[predictedIdx],
		}
		for j, l := range report.Labels {
			pct, err := strconv.ParseFloat(rec[1+j], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "report: row %d label %q", i+1, l)
			}
			row.Percentages[l] = pct
		}
		if withTruth {
			row.GroundTruth = rec[predictedIdx+1]
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}
