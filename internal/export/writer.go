package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/jnst/storefront-sync/internal/model"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Supported CSV encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1251 = "windows-1251"
)

const (
	columnWidth = 20
	utf8BOM     = "\ufeff"
)

// ErrUnknownFormat is returned for a format other than xlsx or csv.
var ErrUnknownFormat = errors.New("unknown export format")

// Options tunes the output file.
type Options struct {
	// Encoding applies to CSV only. Empty means UTF-8.
	Encoding string
}

// Write renders records as a file in format. An empty record list yields a header-only file.
func Write(w io.Writer, format string, layout Layout, records []*model.SyncRecord, opts Options) error {
	switch format {
	case FormatXLSX:
		return writeXLSX(w, layout, records)
	case FormatCSV:
		return writeCSV(w, layout, records, opts.Encoding)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// FileName returns "<subject>_sync_queue_YYYYMMDD_HHMM.<format>".
func FileName(subject model.Subject, format string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", subject.QueueTable(), at.UTC().Format("20060102_1504"), format)
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}

	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func writeXLSX(w io.Writer, layout Layout, records []*model.SyncRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := layout.Subject.Plural()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(layout.Columns))
	for i, col := range layout.Columns {
		header[i] = col
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(layout.Columns))
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if err := f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, record := range records {
		row, err := layout.Row(record)
		if err != nil {
			return err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", record.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	return nil
}

func writeCSV(w io.Writer, layout Layout, records []*model.SyncRecord, enc string) error {
	out := w
	var closer io.Closer

	switch enc {
	case "", EncodingUTF8:
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	case EncodingWindows1251:
		encoder := encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder())
		ew := encoder.Writer(w)
		if c, ok := ew.(io.Closer); ok {
			closer = c
		}
		out = ew
	default:
		return fmt.Errorf("unknown csv encoding %q", enc)
	}

	cw := csv.NewWriter(out)

	if err := cw.Write(layout.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, record := range records {
		row, err := layout.Row(record)
		if err != nil {
			return err
		}

		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = cellString(v)
		}

		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("failed to write record %d: %w", record.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to flush encoded csv: %w", err)
		}
	}

	return nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
