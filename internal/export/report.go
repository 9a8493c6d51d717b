// Package export builds booking reports for administrators.
package export

import (
	"context"
	"fmt"
	"io"

	"slotwise/internal/model"
)

var reportColumns = []string{"Date", "Start", "End", "Service", "Client", "Phone", "Status", "Created"}

// Reporter writes booking reports as Excel workbooks.
type Reporter struct {
	bookings BookingSource
	services ServiceSource
	writer   func() ReportWriter
}

// NewReporter creates a reporter. newWriter defaults to NewExcelWorkbook.
func NewReporter(bookings BookingSource, services ServiceSource, newWriter func() ReportWriter) *Reporter {
	if newWriter == nil {
		newWriter = NewExcelWorkbook
	}
	return &Reporter{bookings: bookings, services: services, writer: newWriter}
}

// WriteBookings writes all active bookings in [from, to] to out as a
// single-sheet workbook, ordered by date and start time.
func (r *Reporter) WriteBookings(ctx context.Context, from, to model.Date, out io.Writer) error {
	list, err := r.bookings.BookingsInRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	names := make(map[string]string)
	if services, err := r.services.ListServices(ctx); err == nil {
		for _, s := range services {
			names[s.ID] = s.Name
		}
	}

	rows := make([][]any, 0, len(list))
	for _, b := range list {
		name := names[b.ServiceID]
		if name == "" {
			name = b.ServiceID
		}
		rows = append(rows, []any{
			string(b.Date),
			b.Start.String(),
			b.End.String(),
			name,
			b.ClientName,
			b.ClientPhone,
			string(b.Status),
			b.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	w := r.writer()
	defer w.Close()

	sheet := fmt.Sprintf("Bookings %s - %s", from, to)
	if err := w.WriteSheet(sheet, reportColumns, rows); err != nil {
		return err
	}
	return w.Save(out)
}
