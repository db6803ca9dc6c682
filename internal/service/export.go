package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/metrics"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

const forecastSheetName = "Forecast"

// ExportService renders persisted forecasts as XLSX workbooks.
type ExportService struct{}

// NewExportService creates a new export service
func NewExportService() *ExportService {
	return &ExportService{}
}

// ForecastWorkbook renders one forecast: a row per team, a column per
// forecast month, plus row and column totals.
func (s *ExportService) ForecastWorkbook(ctx context.Context, forecast *model.EpicForecast) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, forecastSheetName); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	months := forecastMonths(forecast.ForecastData)
	headers := append([]string{"Team"}, months...)
	headers = append(headers, "Total")

	if err := s.writeHeaders(f, headers); err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}
	if err := s.writeRows(f, forecast, months); err != nil {
		return nil, fmt.Errorf("writing rows: %w", err)
	}
	if err := s.writeMeta(f, forecast, len(headers)); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}
	if err := s.fitColumns(f, len(headers)); err != nil {
		return nil, fmt.Errorf("sizing columns: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("writing buffer: %w", err)
	}

	metrics.Get().IncrementForecastExport()
	logger.Audit(ctx, logger.AuditEvent{
		Action:     logger.AuditActionForecastExport,
		Resource:   "epic_forecast",
		ResourceID: fmt.Sprintf("%d", forecast.ID),
		Success:    true,
	})

	return buf, nil
}

// forecastMonths collects the sorted union of month keys across teams.
func forecastMonths(data model.ForecastData) []string {
	seen := make(map[string]bool)
	for _, byMonth := range data {
		for month := range byMonth {
			seen[month] = true
		}
	}
	months := make([]string, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

func (s *ExportService) writeHeaders(f *excelize.File, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(forecastSheetName, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(forecastSheetName, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) writeRows(f *excelize.File, forecast *model.EpicForecast, months []string) error {
	styleOdd, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"F2F2F2"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "D9D9D9", Style: 1},
			{Type: "top", Color: "D9D9D9", Style: 1},
			{Type: "bottom", Color: "D9D9D9", Style: 1},
			{Type: "right", Color: "D9D9D9", Style: 1},
		},
	})
	styleTotal, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: 1},
		},
	})

	teams := make([]string, 0, len(forecast.ForecastData))
	for team := range forecast.ForecastData {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	monthTotals := make([]float64, len(months))
	for row, team := range teams {
		excelRow := row + 2

		cell, _ := excelize.CoordinatesToCellName(1, excelRow)
		if err := f.SetCellValue(forecastSheetName, cell, team); err != nil {
			return err
		}

		var teamTotal float64
		for col, month := range months {
			hours := forecast.ForecastData[team][month]
			teamTotal += hours
			monthTotals[col] += hours

			cell, _ := excelize.CoordinatesToCellName(col+2, excelRow)
			if err := f.SetCellValue(forecastSheetName, cell, hours); err != nil {
				return err
			}
			if row%2 == 1 {
				if err := f.SetCellStyle(forecastSheetName, cell, cell, styleOdd); err != nil {
					return err
				}
			}
		}

		cell, _ = excelize.CoordinatesToCellName(len(months)+2, excelRow)
		if err := f.SetCellValue(forecastSheetName, cell, teamTotal); err != nil {
			return err
		}
	}

	// Column totals row.
	totalRow := len(teams) + 2
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetCellValue(forecastSheetName, cell, "Total"); err != nil {
		return err
	}
	for col, total := range monthTotals {
		cell, _ := excelize.CoordinatesToCellName(col+2, totalRow)
		if err := f.SetCellValue(forecastSheetName, cell, total); err != nil {
			return err
		}
	}
	cell, _ = excelize.CoordinatesToCellName(len(months)+2, totalRow)
	if err := f.SetCellValue(forecastSheetName, cell, forecast.TotalHours); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, totalRow)
	last, _ := excelize.CoordinatesToCellName(len(months)+2, totalRow)
	return f.SetCellStyle(forecastSheetName, first, last, styleTotal)
}

// writeMeta appends the provenance block below the grid: category,
// confidence, enabled features and warning flags.
func (s *ExportService) writeMeta(f *excelize.File, forecast *model.EpicForecast, _ int) error {
	startRow := len(forecast.ForecastData) + 4

	lines := [][2]interface{}{
		{"Project", forecast.ProjectKey},
		{"Epic", forecast.EpicName},
		{"Category", string(forecast.Category)},
		{"Confidence", forecast.Confidence},
		{"Total hours", forecast.TotalHours},
	}
	if len(forecast.Flags) > 0 {
		flags := ""
		for i, fl := range forecast.Flags {
			if i > 0 {
				flags += ", "
			}
			flags += fl
		}
		lines = append(lines, [2]interface{}{"Flags", flags})
	}

	for i, line := range lines {
		keyCell, _ := excelize.CoordinatesToCellName(1, startRow+i)
		valCell, _ := excelize.CoordinatesToCellName(2, startRow+i)
		if err := f.SetCellValue(forecastSheetName, keyCell, line[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(forecastSheetName, valCell, line[1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportService) fitColumns(f *excelize.File, numCols int) error {
	for col := 1; col <= numCols; col++ {
		colName, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(forecastSheetName, colName, colName, 16); err != nil {
			return err
		}
	}
	return nil
}
