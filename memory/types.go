// Package memory provides the agent's two-tier memory: a Postgres-backed
// long-term store and a Redis-backed short-term cache, combined by Manager
// into the single collaborator the orchestrator consumes.
package memory

import (
	"errors"
	"fmt"
	"time"
)

// Type tags a memory record.
type Type string

const (
	TypeFact         Type = "fact"
	TypePreference   Type = "preference"
	TypeLearning     Type = "learning"
	TypeConversation Type = "conversation"
	TypeTool         Type = "tool"
)

// Valid reports whether t is one of the defined record types.
func (t Type) Valid() bool {
	switch t {
	case TypeFact, TypePreference, TypeLearning, TypeConversation, TypeTool:
		return true
	}
	return false
}

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("memory record not found")

// Record is one stored memory.
type Record struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id,omitempty"`
	Type       Type           `json:"type"`
	Content    string         `json:"content"`
	Importance int            `json:"importance"`
	Embedding  []float64      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	AccessedAt *time.Time     `json:"accessed_at,omitempty"`
}

// Validate checks the record shape before it is persisted.
func (r Record) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid memory type: %q", r.Type)
	}
	if r.Content == "" {
		return fmt.Errorf("memory content must not be empty")
	}
	if r.Importance < 0 || r.Importance > 10 {
		return fmt.Errorf("importance %d out of range [0, 10]", r.Importance)
	}
	return nil
}

// SearchOptions filter a memory search.
type SearchOptions struct {
	AgentID       string `json:"agent_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	MinImportance int    `json:"min_importance,omitempty"`
	Types         []Type `json:"types,omitempty"`
}
