package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"restocrm/internal/models"

	"github.com/xuri/excelize/v2"
)

const clientsSheet = "Clientes"

// WriteClientsWorkbook writes clients as a single-sheet xlsx workbook.
func WriteClientsWorkbook(w io.Writer, clients []models.Client) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(clientsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, row := range clientRows(clients) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(clientsSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+1, err)
		}
	}

	// Заголовок жирным
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	lastCol, _ := excelize.ColumnNumberToName(len(clientHeaders))
	_ = f.SetCellStyle(clientsSheet, "A1", lastCol+"1", style)
	_ = f.SetColWidth(clientsSheet, "A", lastCol, 20)
	_ = f.SetPanes(clientsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveClientsWorkbook writes the workbook under dir and returns its path.
func SaveClientsWorkbook(dir, tenantName string, clients []models.Client, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, strings.TrimSpace(tenantName))
	path := filepath.Join(dir, fmt.Sprintf("clientes_%s_%s.xlsx", name, now.Format("2006-01-02_150405")))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating export file: %w", err)
	}
	if err := WriteClientsWorkbook(file, clients); err != nil {
		_ = file.Close()
		return "", err
	}
	return path, file.Close()
}
