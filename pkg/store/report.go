package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recipecost/models"
)

// OrderSummary aggregates a user's orders over a period.
type OrderSummary struct {
	Count int64
	Total float64
}

// MonthRange parses YYYY-MM into the UTC half-open interval it covers.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

func ordersCreatedBetween(db *gorm.DB, userID uint, start, end time.Time) *gorm.DB {
	return db.Model(&models.Order{}).Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end)
}

// SummarizeOrders counts the user's orders created in [start, end) and sums
// their totals. Cancelled orders are left out.
func SummarizeOrders(ctx context.Context, db *gorm.DB, userID uint, start, end time.Time) (OrderSummary, error) {
	var sum OrderSummary
	err := ordersCreatedBetween(db.WithContext(ctx), userID, start, end).
		Where("status <> ?", models.StatusCancelled).
		Select("COUNT(*) AS count, COALESCE(SUM(total_price), 0) AS total").
		Scan(&sum).Error
	return sum, err
}

// OrdersBetween lists the user's orders created in [start, end) by id.
func OrdersBetween(ctx context.Context, db *gorm.DB, userID uint, start, end time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := ordersCreatedBetween(db.WithContext(ctx), userID, start, end).Order("id").Find(&rows).Error
	return rows, err
}
