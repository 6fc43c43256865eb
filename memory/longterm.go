package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordModel is the GORM mapping for long-term memory rows. Embedding and
// metadata are stored as JSON columns so the same model works on Postgres and
// the SQLite driver used in tests.
type recordModel struct {
	ID         string         `gorm:"primaryKey;size:64"`
	AgentID    string         `gorm:"size:255;index"`
	Type       string         `gorm:"size:50;not null;index"`
	Content    string         `gorm:"not null"`
	Importance int            `gorm:"default:5;check:importance >= 0 AND importance <= 10"`
	Embedding  []float64      `gorm:"serializer:json"`
	Metadata   map[string]any `gorm:"serializer:json"`
	CreatedAt  time.Time      `gorm:"index"`
	AccessedAt *time.Time
}

// TableName fixes the table name regardless of GORM naming strategy.
func (recordModel) TableName() string { return "cortex_memories" }

// LongTermStore is the durable memory store.
type LongTermStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLongTermStore wraps an open GORM handle and migrates the memory table.
func NewLongTermStore(db *gorm.DB, logger *zap.Logger) (*LongTermStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &LongTermStore{
		db:     db,
		logger: logger.With(zap.String("component", "long_term_memory")),
	}
	if err := db.AutoMigrate(&recordModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate memory table: %w", err)
	}
	return store, nil
}

// Save persists a record, generating an id when absent, and returns the
// stored form.
func (s *LongTermStore) Save(ctx context.Context, rec Record) (*Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	row := recordModel{
		ID:         rec.ID,
		AgentID:    rec.AgentID,
		Type:       string(rec.Type),
		Content:    rec.Content,
		Importance: rec.Importance,
		Embedding:  rec.Embedding,
		Metadata:   rec.Metadata,
		CreatedAt:  time.Now(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("memory save failed", zap.Error(err))
		return nil, fmt.Errorf("failed to save memory: %w", err)
	}

	saved := row.toRecord()
	s.logger.Debug("memory saved",
		zap.String("id", saved.ID),
		zap.String("type", string(saved.Type)),
	)
	return &saved, nil
}

// Search runs a filtered substring search over record content, ordered by
// importance then recency.
func (s *LongTermStore) Search(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&recordModel{})

	if opts.AgentID != "" {
		q = q.Where("agent_id = ?", opts.AgentID)
	}
	if len(opts.Types) > 0 {
		typeNames := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			typeNames[i] = string(t)
		}
		q = q.Where("type IN ?", typeNames)
	}
	if opts.MinImportance > 0 {
		q = q.Where("importance >= ?", opts.MinImportance)
	}
	if query != "" {
		q = q.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	q = q.Order("importance DESC, created_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []recordModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

// Get fetches one record by id and touches its accessed timestamp.
func (s *LongTermStore) Get(ctx context.Context, id string) (*Record, error) {
	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&recordModel{}).
		Where("id = ?", id).
		Update("accessed_at", &now).Error; err != nil {
		return nil, fmt.Errorf("failed to touch memory: %w", err)
	}

	var row recordModel
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}

	rec := row.toRecord()
	return &rec, nil
}

// Delete removes one record. Deleting an unknown id is not an error.
func (s *LongTermStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&recordModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return nil
}

// Cleanup removes never-accessed records older than the given age and returns
// how many rows were deleted.
func (s *LongTermStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("created_at < ? AND accessed_at IS NULL", cutoff).
		Delete(&recordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up memories: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close releases the underlying connection pool.
func (s *LongTermStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m recordModel) toRecord() Record {
	return Record{
		ID:         m.ID,
		AgentID:    m.AgentID,
		Type:       Type(m.Type),
		Content:    m.Content,
		Importance: m.Importance,
		Embedding:  m.Embedding,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		AccessedAt: m.AccessedAt,
	}
}
