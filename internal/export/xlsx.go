package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Tih000/max/internal/models"
)

// ErrNothingToExport is returned when no tasks qualify for export
var ErrNothingToExport = errors.New("nothing to export")

const sheetName = "Tasks"

var headerRow = []string{"Title", "Description", "Status", "Priority", "Assignee", "Due", "Created by", "Created at"}

// TasksToXLSX renders tasks as a spreadsheet, one row per task
func TasksToXLSX(tasks []*models.Task) ([]byte, error) {
	if len(tasks) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, name := range headerRow {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, t := range tasks {
		row := []any{
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			t.AssigneeName,
			"",
			t.CreatorName,
			t.CreatedAt.Format("2006-01-02 15:04"),
		}
		if t.DueAt != nil {
			row[5] = t.DueAt.Format("2006-01-02 15:04")
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
