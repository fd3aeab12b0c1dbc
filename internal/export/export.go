// Package export renders aggregate buckets as delimited text or a
// spreadsheet with human-readable period/keyboard/mouse/score columns.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
)

var header = []string{"Period", "Keyboard", "Mouse", "Score"}

// WriteCSV writes one header row plus one row per bucket, in input order.
func WriteCSV(w io.Writer, buckets []rollup.Bucket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range buckets {
		record := []string{
			b.Period,
			strconv.FormatInt(b.Keyboard, 10),
			strconv.FormatInt(b.Mouse, 10),
			strconv.FormatInt(b.Score, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the buckets to a single-sheet workbook at path.
func WriteXLSX(path string, buckets []rollup.Bucket) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	const sheet = "Activity"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}

	for i, b := range buckets {
		row := i + 2
		values := []interface{}{b.Period, b.Keyboard, b.Mouse, b.Score}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
