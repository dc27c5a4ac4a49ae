// Package google writes the booking schedule to a Google spreadsheet via a
// service account. The worker drives it; the booking core never imports it.
package google

import (
	"context"
	"fmt"
	"os"

	"fieldbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const bookingsRange = "Bookings!A1"

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsService{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection проверяет доступ сервисного аккаунта к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ReplaceBookings rewrites the Bookings sheet with the given rows. A full
// replace keeps the sheet consistent without tracking per-row positions.
func (s *SheetsService) ReplaceBookings(ctx context.Context, bookings []*models.Booking) error {
	values := [][]interface{}{
		{"ID", "Reference", "Date", "Start", "End", "Renter", "Phone", "Hours", "Rate", "Total", "Status", "Comment"},
	}
	for _, b := range bookings {
		values = append(values, []interface{}{
			b.ID,
			b.Reference,
			b.DateOfRent.Format(models.DateLayout),
			b.StartTime,
			b.EndTime,
			b.RenterName,
			b.RenterPhone,
			b.DurationHours,
			b.PricePerHour,
			b.TotalPrice,
			b.Status,
			b.Comment,
		})
	}

	clearCall := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, "Bookings!A:L", &sheets.ClearValuesRequest{})
	if _, err := clearCall.Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	body := &sheets.ValueRange{Values: values}
	updateCall := s.service.Spreadsheets.Values.Update(s.spreadsheetID, bookingsRange, body).
		ValueInputOption("RAW")
	if _, err := updateCall.Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}
	return nil
}
