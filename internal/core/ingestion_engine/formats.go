package ingestion_engine

import (
	"mime"
	"strings"
)

// Format enumerates the conversion paths the pipeline knows.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatPPTX    Format = "pptx"
	FormatPPT     Format = "ppt"
	FormatDOCX    Format = "docx"
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatXLS     Format = "xls"
	FormatXLSX    Format = "xlsx"
)

const (
	MimePDF  = "application/pdf"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimePPT  = "application/vnd.ms-powerpoint"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
	MimeCSV  = "text/csv"
	MimeXLS  = "application/vnd.ms-excel"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var formatsByMime = map[string]Format{
	MimePDF:  FormatPDF,
	MimePPTX: FormatPPTX,
	MimePPT:  FormatPPT,
	MimeDOCX: FormatDOCX,
	MimeText: FormatText,
	MimeCSV:  FormatCSV,
	MimeXLS:  FormatXLS,
	MimeXLSX: FormatXLSX,
}

// DetectFormat maps a declared mimetype to a Format. Parameters such as charset are ignored.
func DetectFormat(mimeType string) Format {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	return formatsByMime[mt]
}
