package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	recentListLimit = 10
	searchCacheTTL  = 5 * time.Minute
)

// Manager combines the long-term Postgres store with the Redis cache.
// Writes go through to both; searches are cache-aside.
type Manager struct {
	longTerm  *LongTermStore
	shortTerm *ShortTermStore
	logger    *zap.Logger
}

// NewManager wires the two stores together.
func NewManager(longTerm *LongTermStore, shortTerm *ShortTermStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		longTerm:  longTerm,
		shortTerm: shortTerm,
		logger:    logger.With(zap.String("component", "memory_manager")),
	}
}

// Remember persists a record and caches it for fast recall. The record's
// id is also pushed onto the owning agent's recent list.
func (m *Manager) Remember(ctx context.Context, rec Record) (*Record, error) {
	saved, err := m.longTerm.Save(ctx, rec)
	if err != nil {
		return nil, err
	}

	if err := m.shortTerm.Save(ctx, "memory:"+saved.ID, saved, 0); err != nil {
		m.logger.Warn("failed to cache memory", zap.String("id", saved.ID), zap.Error(err))
	}

	agentID := saved.AgentID
	if agentID == "" {
		agentID = "default"
	}
	listKey := m.shortTerm.prefix + "session:" + agentID + ":recent"
	pipe := m.shortTerm.client.Pipeline()
	pipe.LPush(ctx, listKey, saved.ID)
	pipe.LTrim(ctx, listKey, 0, recentListLimit-1)
	pipe.Expire(ctx, listKey, m.shortTerm.defaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("failed to update recent list", zap.String("agent_id", agentID), zap.Error(err))
	}
	return saved, nil
}

// Recall searches long-term memory with a short-lived result cache.
func (m *Manager) Recall(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	cacheKey := searchCacheKey(query, opts)

	var cached []Record
	if err := m.shortTerm.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		m.logger.Warn("search cache lookup failed", zap.Error(err))
	}

	results, err := m.longTerm.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if err := m.shortTerm.Save(ctx, cacheKey, results, searchCacheTTL); err != nil {
			m.logger.Warn("failed to cache search results", zap.Error(err))
		}
	}
	return results, nil
}

// Get retrieves a single record, preferring the cache.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	var cached Record
	if err := m.shortTerm.Get(ctx, "memory:"+id, &cached); err == nil {
		return &cached, nil
	}
	return m.longTerm.Get(ctx, id)
}

// Forget removes a record from both stores.
func (m *Manager) Forget(ctx context.Context, id string) error {
	if err := m.longTerm.Delete(ctx, id); err != nil {
		return err
	}
	if err := m.shortTerm.Delete(ctx, "memory:"+id); err != nil {
		m.logger.Warn("failed to evict cached memory", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// GetRecent returns the most recently remembered records for an agent,
// newest first.
func (m *Manager) GetRecent(ctx context.Context, agentID string) ([]Record, error) {
	if agentID == "" {
		agentID = "default"
	}
	listKey := m.shortTerm.prefix + "session:" + agentID + ":recent"
	ids, err := m.shortTerm.client.LRange(ctx, listKey, 0, recentListLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent list: %w", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := m.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Close shuts down both stores.
func (m *Manager) Close() error {
	var firstErr error
	if err := m.shortTerm.Close(); err != nil {
		firstErr = err
	}
	if err := m.longTerm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func searchCacheKey(query string, opts SearchOptions) string {
	raw, err := json.Marshal(opts)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf("search:%s:%s", query, raw)
}
