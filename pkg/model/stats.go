package model

// BookingStats is the admin statistics view: totals plus per-status and
// per-rental-type breakdowns, computed by a storage-side aggregation.
type BookingStats struct {
	Total        int64              `json:"total"`
	ByStatus     map[string]int64   `json:"by_status"`
	ByRentalType map[string]int64   `json:"by_rental_type"`
	AmountTotal  float64            `json:"amount_total"`
	AmountByType map[string]float64 `json:"amount_by_rental_type"`
}
