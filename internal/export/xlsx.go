// Package export renders the booking schedule as an Excel workbook for
// office staff who live in spreadsheets.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Расписание"

// Exporter writes xlsx files into the configured directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// WriteSchedule создает Excel файл с бронированиями за период
func (e *Exporter) WriteSchedule(ctx context.Context, startDate, endDate time.Time, bookings []*models.Booking) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headers := []string{"Дата", "Начало", "Конец", "Часы", "Арендатор", "Телефон", "Тариф", "Сумма", "Статус", "Комментарий"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A2", "J2", headerStyle)

	for i, b := range bookings {
		row := i + 3
		values := []interface{}{
			b.DateOfRent.Format("02.01.2006"),
			b.StartTime,
			b.EndTime,
			b.DurationHours,
			b.RenterName,
			b.RenterPhone,
			b.PricePerHour,
			b.TotalPrice,
			statusLabel(b.Status),
			b.Comment,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "E", "F", 20)
	_ = f.SetColWidth(sheetName, "J", "J", 30)
	_ = f.MergeCell(sheetName, "A1", "J1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	return filePath, nil
}

func statusLabel(status string) string {
	switch status {
	case models.StatusPending:
		return "Ожидает"
	case models.StatusConfirmed:
		return "Подтверждено"
	case models.StatusCancelled:
		return "Отменено"
	default:
		return status
	}
}
