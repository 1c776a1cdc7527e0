package sessiondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pricetrail/backend/internal/domain"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SessionRecord is one persisted session: its id and the JSON-encoded state
type SessionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	State     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"index"`
}

// TableName pins the table name across drivers
func (SessionRecord) TableName() string {
	return "crawl_sessions"
}

// Open connects with the given driver ("sqlite" or "mysql") and migrates the schema
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported session driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session database: %w", err)
	}

	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session schema: %w", err)
	}

	log.Printf("[SessionDB] %s session store ready", driver)
	return db, nil
}

// Repository implements domain.SessionRepository on gorm
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps an open gorm handle
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LoadSession returns the durable copy of a session or domain.ErrSessionNotFound
func (r *Repository) LoadSession(ctx context.Context, id string) (*domain.SessionState, error) {
	var rec SessionRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(rec.State), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}

// SaveSession upserts the session state
func (r *Repository) SaveSession(ctx context.Context, id string, state *domain.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}

	rec := SessionRecord{ID: id, State: string(payload), UpdatedAt: time.Now()}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// DeleteSession removes the durable copy; a missing session is not an error
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&SessionRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// PruneSessions deletes sessions last saved before the cutoff
func (r *Repository) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
