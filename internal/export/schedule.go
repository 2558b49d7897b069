// Package export writes the user's reservation schedule as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"buynow/internal/models"
)

const (
	ScheduleSheet = "Schedule"
	maxSheetName  = 31
)

var scheduleHeader = []string{"ID", "Store", "Menu", "Designer", "Time", "Price", "Status"}

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
	return nil
}

func (w *sheetWriter) writeRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.currentRow, err)
	}
	w.currentRow++
	return nil
}

// WriteSchedule writes reservations to a single-sheet workbook.
func WriteSchedule(out io.Writer, reservations []models.Reservation) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet(ScheduleSheet); err != nil {
		return err
	}
	if err := w.writeHeader(scheduleHeader); err != nil {
		return err
	}
	for _, r := range reservations {
		err := w.writeRow([]any{
			r.ID,
			r.StoreName,
			r.MenuName,
			r.DesignerName,
			r.ReservationTime,
			r.DiscountPrice,
			string(r.Status),
		})
		if err != nil {
			return err
		}
	}
	if err := w.file.SetColWidth(ScheduleSheet, "B", "D", 24); err != nil {
		return err
	}
	return w.file.Write(out)
}
