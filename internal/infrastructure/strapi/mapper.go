package strapi

import "github.com/pricetrail/backend/internal/domain"

// MapEntity flattens a stored {id, attributes} entry into a PriceRecord
func MapEntity(entity domain.StoreEntity) domain.PriceRecord {
	attrs := entity.Attributes
	return domain.PriceRecord{
		ID:          entity.ID,
		Title:       attrs.Title,
		Price:       attrs.Price,
		URL:         attrs.URL,
		Code:        attrs.Code,
		Date:        attrs.Date,
		Site:        attrs.Site,
		CreatedAt:   attrs.CreatedAt,
		UpdatedAt:   attrs.UpdatedAt,
		PublishedAt: attrs.PublishedAt,
	}
}

// MapEntities flattens a page of entries, preserving order
func MapEntities(entities []domain.StoreEntity) []domain.PriceRecord {
	records := make([]domain.PriceRecord, 0, len(entities))
	for _, entity := range entities {
		records = append(records, MapEntity(entity))
	}
	return records
}

// ToFields converts a record into create-request attributes.
// Identity and timestamps are left for the store to assign.
func ToFields(record domain.PriceRecord) domain.StoreFields {
	return domain.StoreFields{
		Title: record.Title,
		Price: record.Price,
		URL:   record.URL,
		Code:  record.Code,
		Date:  record.Date,
		Site:  record.Site,
	}
}
