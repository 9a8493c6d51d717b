package export

import (
	"context"
	"io"

	"slotwise/internal/model"
)

// ReportWriter renders one finished report sheet to a workbook.
type ReportWriter interface {
	WriteSheet(name string, columns []string, rows [][]any) error
	Save(w io.Writer) error
	Close() error
}

// BookingSource lists bookings for the report period.
type BookingSource interface {
	BookingsInRange(ctx context.Context, from, to model.Date) ([]model.Booking, error)
}

// ServiceSource resolves service names for the report.
type ServiceSource interface {
	ListServices(ctx context.Context) ([]model.Service, error)
}
