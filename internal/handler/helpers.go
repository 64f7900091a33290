package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lengolf/ledger-api/internal/database"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// parseDateRange parses start_date and end_date query params.
// Defaults to the last 30 days if not provided, with "today" resolved in
// the business timezone so the default window matches trading days.
// Returns (startDate, endDate, error) where endDate is exclusive.
func parseDateRange(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := time.Now().In(loc)

	// Ledger sale dates are stored as date-only midnight UTC; only the
	// calendar day comes from the business timezone.
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -30)
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}

// parseLimit parses the limit query param, clamped to max.
func parseLimit(r *http.Request, fallback, max int32) int32 {
	limit := fallback
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = int32(v)
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// batchResponse is the JSON shape of one sync batch.
type batchResponse struct {
	ID              string  `json:"id"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     *string `json:"completed_at"`
	Status          string  `json:"status"`
	LegacyProcessed int32   `json:"legacy_processed"`
	LegacyInserted  int32   `json:"legacy_inserted"`
	LegacySkipped   int32   `json:"legacy_skipped"`
	PosProcessed    int32   `json:"pos_processed"`
	PosInserted     int32   `json:"pos_inserted"`
	PosSkipped      int32   `json:"pos_skipped"`
	Error           *string `json:"error"`
}

func toBatchResponse(b database.SyncBatch) batchResponse {
	resp := batchResponse{
		ID:              b.ID.String(),
		StartedAt:       b.StartedAt.Format(time.RFC3339),
		Status:          b.Status,
		LegacyProcessed: b.LegacyProcessed,
		LegacyInserted:  b.LegacyInserted,
		LegacySkipped:   b.LegacySkipped,
		PosProcessed:    b.PosProcessed,
		PosInserted:     b.PosInserted,
		PosSkipped:      b.PosSkipped,
	}
	if b.CompletedAt.Valid {
		s := b.CompletedAt.Time.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	if b.ErrorDetail.Valid {
		s := b.ErrorDetail.String
		resp.Error = &s
	}
	return resp
}
