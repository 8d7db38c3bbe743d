package export

import "context"

// ExportService produces CSV-ready rows. The first row is the header.
type ExportService interface {
	Rows(ctx context.Context, t Type) ([][]string, error)
}
