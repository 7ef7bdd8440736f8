package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/rpattn/permitsync/internal/domain"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

func parseCSVRecords(sourceKey string, payload []byte) ([]map[string]any, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrInvalidSourceData, sourceKey, err)
	}
	return rowsToRecords(sourceKey, rows)
}

func parseExcelRecords(sourceKey string, payload []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrInvalidSourceData, sourceKey, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: source %s workbook has no sheets", domain.ErrInvalidSourceData, sourceKey)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrInvalidSourceData, sourceKey, err)
	}
	return rowsToRecords(sourceKey, rows)
}

// rowsToRecords treats the first non-empty row as the header and every later
// non-empty row as one record keyed by sanitized header names.
func rowsToRecords(sourceKey string, rows [][]string) ([]map[string]any, error) {
	var headers []string
	records := []map[string]any{}

	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(row)
			continue
		}

		record := make(map[string]any, len(headers))
		for i, header := range headers {
			if i < len(row) {
				record[header] = strings.TrimSpace(row[i])
			} else {
				record[header] = ""
			}
		}
		records = append(records, record)
	}

	if headers == nil {
		return nil, fmt.Errorf("%w: source %s tabular file has no header row", domain.ErrInvalidSourceData, sourceKey)
	}
	return records, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ToLower(name)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
