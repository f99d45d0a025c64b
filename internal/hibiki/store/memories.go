package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMemoryNotFound is returned when a memory ID does not exist.
var ErrMemoryNotFound = errors.New("memory not found")

// Memory is one persisted note about interactions with a process.
type Memory struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"processId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddMemory persists a memory and returns it with its generated ID.
func (s *Store) AddMemory(ctx context.Context, processID, role, content string, tags []string) (*Memory, error) {
	if strings.TrimSpace(processID) == "" {
		return nil, fmt.Errorf("process id must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("memory content must not be empty")
	}
	if role == "" {
		role = "user"
	}

	m := &Memory{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Role:      role,
		Content:   content,
		Tags:      tags,
		CreatedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, process_id, role, content, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProcessID, m.Role, m.Content, joinTags(m.Tags), m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}
	return m, nil
}

// GetMemory retrieves one memory by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, process_id, role, content, tags, created_at
		FROM memories
		WHERE id = ?
	`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemoryNotFound
	}
	return m, err
}

// ListMemories retrieves memories for a process, newest first.
func (s *Store) ListMemories(ctx context.Context, processID string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, process_id, role, content, tags, created_at
		FROM memories
		WHERE process_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, processID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// SearchMemories finds memories whose content or tags contain the query,
// newest first. Matching is a plain substring search.
func (s *Store) SearchMemories(ctx context.Context, query string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, process_id, role, content, tags, created_at
		FROM memories
		WHERE content LIKE ? OR tags LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// DeleteMemory removes a memory by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrMemoryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	m := &Memory{}
	var tags sql.NullString
	err := row.Scan(&m.ID, &m.ProcessID, &m.Role, &m.Content, &tags, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Tags = splitTags(tags.String)
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}
	return memories, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
