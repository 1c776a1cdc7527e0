package export

import (
	"fmt"
	"io"

	"github.com/pricetrail/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	historySheet = "History"
	lowestSheet  = "Daily Lowest"
)

var (
	historyHeader = []interface{}{"Date", "Title", "Price", "URL", "Code", "Site"}
	lowestHeader  = []interface{}{"Date", "Lowest Price", "Title", "URL"}
)

// WriteHistoryXLSX writes the site history and its daily-lowest series as a
// workbook. records and points are expected in chart order (date ascending).
func WriteHistoryXLSX(w io.Writer, site string, records []domain.PriceRecord, points []domain.ChartPoint) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, historySheet, 1, historyHeader); err != nil {
		return err
	}
	for i, r := range records {
		row := []interface{}{r.Date, r.Title, r.Price, r.URL, r.Code, r.Site}
		if err := setRow(f, historySheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(lowestSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := setRow(f, lowestSheet, 1, lowestHeader); err != nil {
		return err
	}
	for i, p := range points {
		row := []interface{}{p.Date, p.Price, p.Title, p.URL}
		if err := setRow(f, lowestSheet, i+2, row); err != nil {
			return err
		}
	}

	if len(points) > 0 {
		if err := addLowestChart(f, site, len(points)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// addLowestChart plots column B (price) against column A (date)
func addLowestChart(f *excelize.File, site string, n int) error {
	last := n + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$1", lowestSheet),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", lowestSheet, last),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", lowestSheet, last),
		}},
		Title: []excelize.RichTextRun{{Text: site + " lowest price"}},
	}
	if err := f.AddChart(lowestSheet, "F2", chart); err != nil {
		return fmt.Errorf("add chart: %w", err)
	}
	return nil
}
