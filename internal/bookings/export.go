package bookings

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var exportHeaders = []any{
	"ID", "Client", "Email", "Phone", "Service", "Participants",
	"Date", "Time", "Status", "Notes", "Session", "Created",
}

// WriteXLSX renders records as a single-sheet spreadsheet.
func WriteXLSX(w io.Writer, records []*Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("bookings: export sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("bookings: export header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("bookings: export cell: %w", err)
		}
		row := []any{
			r.ID, r.ClientName, r.Email, r.Phone, r.Service, r.Participants,
			r.Date, r.Time, string(r.Status), r.Notes, r.ExternalSessionID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("bookings: export row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("bookings: write xlsx: %w", err)
	}
	return nil
}
