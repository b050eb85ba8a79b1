package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Export renders events in the requested format.
func Export(events []*Event, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatJSON, "":
		return exportJSON(events)
	case ExportFormatNDJSON:
		return exportNDJSON(events)
	case ExportFormatCSV:
		return exportCSV(events)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// exportJSON exports audit events as JSON array
func exportJSON(events []*Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// exportNDJSON exports audit events as newline-delimited JSON
func exportNDJSON(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return nil, fmt.Errorf("failed to encode event: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports audit events as CSV
func exportCSV(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"EventID",
		"Timestamp",
		"EventType",
		"Status",
		"UserID",
		"TenantID",
		"ResourceType",
		"ResourceID",
		"IPAddress",
		"RequestID",
		"Message",
	}

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, event := range events {
		row := []string{
			strconv.FormatInt(event.ID, 10),
			event.EventID,
			event.Timestamp.UTC().Format(time.RFC3339),
			string(event.EventType),
			string(event.Status),
			formatInt64Ptr(event.UserID),
			formatInt64Ptr(event.TenantID),
			string(event.ResourceType),
			event.ResourceID,
			event.IPAddress,
			event.RequestID,
			event.Message,
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// formatInt64Ptr formats an int64 pointer as string, returning empty string for nil
func formatInt64Ptr(val *int64) string {
	if val == nil {
		return ""
	}
	return strconv.FormatInt(*val, 10)
}
