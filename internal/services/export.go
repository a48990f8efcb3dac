package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"eneatest/internal/models"
)

// SessionExportRow is one line of the admin CSV export: a session joined with
// its user and, when completed, its per-eneatype totals.
type SessionExportRow struct {
	SessionID   int64
	ExternalID  string
	DisplayName string
	Status      models.SessionStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Totals      map[int]int
}

// exportEneatypes fixes the totals column order; eneatypes outside 1..9 do not
// occur in stored definitions.
var exportEneatypes = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}

// ExportSessionsCSV renders session summaries into a wide CSV with one totals
// column per eneatype. Sessions without a result leave the totals columns
// empty rather than writing zeros.
func ExportSessionsCSV(rows []SessionExportRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"session_id", "external_id", "display_name", "status", "created_at", "completed_at"}
	for _, e := range exportEneatypes {
		header = append(header, "type_"+strconv.Itoa(e))
	}
	header = append(header, "top_eneatype")
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format(time.RFC3339)
		}
		rec := []string{
			strconv.FormatInt(r.SessionID, 10),
			r.ExternalID,
			r.DisplayName,
			string(r.Status),
			r.CreatedAt.Format(time.RFC3339),
			completed,
		}
		for _, e := range exportEneatypes {
			if r.Totals == nil {
				rec = append(rec, "")
				continue
			}
			score, ok := r.Totals[e]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.Itoa(score))
		}
		top := ""
		if len(r.Totals) > 0 {
			ranking := ComputeRanking(r.Totals)
			top = strconv.Itoa(ranking[0].Eneatype)
		}
		rec = append(rec, top)
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
