package ports

import "summcorr/domain/run"

// ReportExporter writes report tables to an external document
type ReportExporter interface {
	// Export writes one sheet per table
	Export(tables []run.Table) error
}
