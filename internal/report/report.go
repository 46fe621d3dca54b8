// Package report builds daily attendance reports and their spreadsheet export.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"rollcall/internal/attendance"
)

const sheetName = "Attendance"

// Columns is the header row of an exported report.
var Columns = []string{"Name", "Roll Number", "Class", "Status"}

// Source is the ledger view a Generator reads from.
type Source interface {
	ReportRows(ctx context.Context, date string) ([]attendance.ReportRow, error)
	Dates(ctx context.Context) ([]string, error)
}

// Generator produces reports for a calendar day.
type Generator struct {
	src Source
}

func NewGenerator(src Source) *Generator {
	return &Generator{src: src}
}

// Build returns one row per registered student for date, ordered by name.
func (g *Generator) Build(ctx context.Context, date string) ([]attendance.ReportRow, error) {
	date, err := attendance.ParseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := g.src.ReportRows(ctx, date)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []attendance.ReportRow{}
	}
	return rows, nil
}

// Dates lists the days with any recorded attendance, newest first.
func (g *Generator) Dates(ctx context.Context) ([]string, error) {
	dates, err := g.src.Dates(ctx)
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Filename is the download name of the export for date.
func Filename(date string) string {
	return fmt.Sprintf("Attendance_Report_%s.xlsx", date)
}

// Export writes the report for date as an xlsx workbook to w.
func (g *Generator) Export(ctx context.Context, date string, w io.Writer) error {
	rows, err := g.Build(ctx, date)
	if err != nil {
		return err
	}
	f, err := workbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportBytes renders the workbook in memory.
func (g *Generator) ExportBytes(ctx context.Context, date string) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Export(ctx, date, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func workbook(rows []attendance.ReportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []any{r.Name, r.RollNo, r.Class, r.Status}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
