package usecase

import (
	"sort"

	"github.com/pricetrail/backend/internal/domain"
)

// SortByDate returns a copy of records ordered by date, then by id
func SortByDate(records []domain.PriceRecord) []domain.PriceRecord {
	sorted := make([]domain.PriceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// DailyLowest reduces records to one point per date holding that day's
// lowest price. On equal prices the earlier record in date order wins.
func DailyLowest(records []domain.PriceRecord) []domain.ChartPoint {
	points := make([]domain.ChartPoint, 0)
	for _, record := range SortByDate(records) {
		last := len(points) - 1
		if last >= 0 && points[last].Date == record.Date {
			if record.Price < points[last].Price {
				points[last] = chartPoint(record)
			}
			continue
		}
		points = append(points, chartPoint(record))
	}
	return points
}

func chartPoint(record domain.PriceRecord) domain.ChartPoint {
	return domain.ChartPoint{
		Date:  record.Date,
		Price: record.Price,
		Title: record.Title,
		URL:   record.URL,
		Code:  record.Code,
	}
}
