package export

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"restocrm/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsExporter mirrors each tenant's client table into its own sheet of
// one spreadsheet.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zerolog.Logger
}

func NewSheetsExporter(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*SheetsExporter, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsExporter(srv, spreadsheetID, logger), nil
}

func newSheetsExporter(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *SheetsExporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "sheets").Logger()
	return &SheetsExporter{service: srv, spreadsheetID: spreadsheetID, logger: &l}
}

// TestConnection reads the spreadsheet metadata.
func (s *SheetsExporter) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// a1 builds an A1 range on sheet, quoting names that need it.
func a1(sheet, rng string) string {
	plain := true
	for _, r := range sheet {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			plain = false
			break
		}
	}
	if !plain {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + rng
}

func (s *SheetsExporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	s.logger.Info().Str("sheet", title).Msg("sheet created")
	return nil
}

// ReplaceClients overwrites the tenant's sheet with clients.
func (s *SheetsExporter) ReplaceClients(ctx context.Context, tenantName string, clients []models.Client) error {
	title := strings.TrimSpace(tenantName)
	if title == "" {
		return fmt.Errorf("sheet title is empty")
	}
	if err := s.ensureSheet(ctx, title); err != nil {
		return err
	}

	// Полностью очищаем и перезаписываем лист
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, a1(title, "A:Z"), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	values := clientRows(clients)
	lastCol := string(rune('A' + len(clientHeaders) - 1))
	rng := a1(title, fmt.Sprintf("A1:%s%d", lastCol, len(values)))
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	s.logger.Info().Str("sheet", title).Int("rows", len(clients)).Msg("clients exported")
	return nil
}
