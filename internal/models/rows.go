package models

import (
	"strconv"
	"time"
)

// Row is one record as returned by a plan executor, keyed by column name.
type Row map[string]interface{}

type TripRow struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Location string  `json:"location"`
	Duration string  `json:"duration"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
	IsActive bool    `json:"is_active"`
}

type PromoRow struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	PromoCode     string     `json:"promo_code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue *float64   `json:"discount_value"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	IsActive      bool       `json:"is_active"`
}

// BookingRow omits contact details; only the owner ever sees it.
type BookingRow struct {
	ID            int64      `json:"id"`
	BookingCode   string     `json:"booking_code"`
	TripID        int64      `json:"trip_id"`
	DepartureDate *time.Time `json:"departure_date"`
	Participants  int        `json:"participants"`
	TotalAmount   float64    `json:"total_amount"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	CreatedAt     *time.Time `json:"created_at"`
}

func TripFromRow(r Row) TripRow {
	return TripRow{
		ID:       r.Int64("id"),
		Name:     r.String("name"),
		Slug:     r.String("slug"),
		Location: r.String("location"),
		Duration: r.String("duration"),
		Price:    r.Float64("price"),
		Status:   r.String("status"),
		IsActive: r.Bool("is_active"),
	}
}

func PromoFromRow(r Row) PromoRow {
	p := PromoRow{
		ID:           r.Int64("id"),
		Name:         r.String("name"),
		PromoCode:    r.String("promo_code"),
		DiscountType: r.String("discount_type"),
		StartDate:    r.Time("start_date"),
		EndDate:      r.Time("end_date"),
		IsActive:     r.Bool("is_active"),
	}
	if r["discount_value"] != nil {
		v := r.Float64("discount_value")
		p.DiscountValue = &v
	}
	return p
}

func BookingFromRow(r Row) BookingRow {
	return BookingRow{
		ID:            r.Int64("id"),
		BookingCode:   r.String("booking_code"),
		TripID:        r.Int64("trip_id"),
		DepartureDate: r.Time("departure_date"),
		Participants:  int(r.Int64("participants")),
		TotalAmount:   r.Float64("total_amount"),
		Status:        r.String("status"),
		PaymentStatus: r.String("payment_status"),
		CreatedAt:     r.Time("created_at"),
	}
}

// Key returns a comparable form of column's value, used for de-duplication.
func (r Row) Key(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return r.String(column)
	}
}

func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	}
	return ""
}

func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

// Float64 accepts NUMERIC columns, which lib/pq returns as text.
func (r Row) Float64(column string) float64 {
	switch v := r[column].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

func (r Row) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (r Row) Time(column string) *time.Time {
	switch v := r[column].(type) {
	case time.Time:
		return &v
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
