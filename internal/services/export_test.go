package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"eneatest/internal/models"
)

func TestExportSessionsCSV(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(20 * time.Minute)
	rows := []SessionExportRow{
		{
			SessionID:   1,
			ExternalID:  "ext-1",
			DisplayName: "Ana",
			Status:      models.StatusCompleted,
			CreatedAt:   created,
			CompletedAt: &completed,
			Totals:      map[int]int{1: 4, 2: 9, 3: 1, 4: 0, 5: 2, 6: 3, 7: 5, 8: 6, 9: 7},
		},
		{
			SessionID:   2,
			ExternalID:  "ext-2",
			DisplayName: "Bea",
			Status:      models.StatusCreated,
			CreatedAt:   created,
		},
	}

	data, err := ExportSessionsCSV(rows)
	if err != nil {
		t.Fatalf("ExportSessionsCSV: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse generated CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	header := records[0]
	if header[0] != "session_id" || header[6] != "type_1" || header[len(header)-1] != "top_eneatype" {
		t.Fatalf("unexpected header: %v", header)
	}

	ana := records[1]
	if ana[6] != "4" || ana[7] != "9" {
		t.Fatalf("totals columns = %v", ana[6:15])
	}
	if ana[len(ana)-1] != "2" {
		t.Fatalf("top eneatype = %q, want 2", ana[len(ana)-1])
	}

	bea := records[2]
	for i := 6; i < 15; i++ {
		if bea[i] != "" {
			t.Fatalf("session without result must leave totals empty, got %q at column %d", bea[i], i)
		}
	}
	if bea[5] != "" {
		t.Fatalf("uncompleted session must leave completed_at empty, got %q", bea[5])
	}
	if bea[len(bea)-1] != "" {
		t.Fatalf("session without result must leave top_eneatype empty, got %q", bea[len(bea)-1])
	}
}
