package ingest

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseCSVRaggedRows(t *testing.T) {
	in := "Time (Uganda),Battery,Humidity,Motion,Temperature\n" +
		"2024-05-01 10:00:00,3.6,48,0,21.5\n" +
		"2024-05-01 10:05:00,3.6,48\n" +
		"2024-05-01 10:10:00,3.6,48,1,21.7,extra\n"
	batch, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(batch.Columns) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(batch.Columns))
	}
	if len(batch.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(batch.Rows))
	}
	for i, row := range batch.Rows {
		if len(row) != 5 {
			t.Fatalf("row %d: expected 5 cells, got %d", i, len(row))
		}
	}
	if batch.Rows[1][3] != "" || batch.Rows[1][4] != "" {
		t.Fatalf("short row must be padded with empty cells, got %v", batch.Rows[1])
	}
	if batch.Rows[2][4] != "21.7" {
		t.Fatalf("long row must be truncated at the header width, got %v", batch.Rows[2])
	}
}

func TestParseCSVStripsBOM(t *testing.T) {
	in := "\uFEFFTime,Temperature\n2024-05-01 10:00:00,21.5\n"
	batch, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if batch.Columns[0] != "Time" {
		t.Fatalf("expected BOM stripped from first column, got %q", batch.Columns[0])
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	batch, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !batch.Empty() {
		t.Fatalf("expected empty batch")
	}
}

func TestUplinkMessageRow(t *testing.T) {
	payload := `{
		"received_at": "2024-05-01T10:00:00Z",
		"uplink_message": {
			"decoded_payload": {"field1": 3.605, "field3": 48.5, "field4": 1, "field5": 21.7}
		}
	}`
	var msg uplinkMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := msg.row()
	want := []string{"2024-05-01 10:00:00", "3.605", "48.5", "1", "21.7"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("cell %d: got %q, want %q", i, row[i], want[i])
		}
	}
}

func TestUplinkMessageMissingFieldsBecomeEmptyCells(t *testing.T) {
	payload := `{
		"received_at": "2024-05-01T10:00:00Z",
		"uplink_message": {"decoded_payload": {"field5": 21.7}}
	}`
	var msg uplinkMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := msg.row()
	if row[1] != "" || row[2] != "" || row[3] != "" {
		t.Fatalf("missing payload fields must yield empty cells, got %v", row)
	}
	if row[4] != "21.7" {
		t.Fatalf("temperature cell wrong: %v", row)
	}
}

func TestReadingMessageRow(t *testing.T) {
	payload := `{"time":"2024-05-01T10:05:00Z","battery":3.6,"humidity":48,"motion":0,"temperature":21.5}`
	var msg readingMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	row := msg.row()
	want := []string{"2024-05-01 10:05:00", "3.6", "48", "0", "21.5"}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("cell %d: got %q, want %q", i, row[i], want[i])
		}
	}
}
