package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Note is one memory entry for a project.
type Note struct {
	ID        int64     `json:"id"`
	Section   string    `json:"section"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AddNote appends a note under a section of the project's memory.
func (s *Store) AddNote(ctx context.Context, projectPath, section, content string) (int64, error) {
	if section == "" {
		section = "Learnings"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_notes (project_path, section, content, created_at)
		VALUES (?, ?, ?, ?)
	`, projectPath, section, content, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.emit(EventNoteAdded, "", strconv.FormatInt(id, 10))
	return id, nil
}

// Notes returns a project's notes grouped by section, oldest first
// within each section.
func (s *Store) Notes(ctx context.Context, projectPath string) (map[string][]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section, content, created_at
		FROM memory_notes
		WHERE project_path = ?
		ORDER BY section, created_at
	`, projectPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make(map[string][]Note)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Section, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes[n.Section] = append(notes[n.Section], n)
	}
	return notes, rows.Err()
}

// MemoryMarkdown renders the project's notes as a markdown document for
// prompt injection.
func (s *Store) MemoryMarkdown(ctx context.Context, projectPath string) (string, error) {
	notes, err := s.Notes(ctx, projectPath)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "", nil
	}

	sections := make([]string, 0, len(notes))
	for section := range notes {
		sections = append(sections, section)
	}
	// Stable order keeps the prompt cache-friendly.
	sort.Strings(sections)

	var b strings.Builder
	b.WriteString("# Project Memory\n")
	for _, section := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", section)
		for _, n := range notes[section] {
			fmt.Fprintf(&b, "- %s\n", n.Content)
		}
	}
	return b.String(), nil
}

// SaveSummary records a session's summary.
func (s *Store) SaveSummary(ctx context.Context, sessionID, projectPath, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_summaries (session_id, project_path, summary, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, projectPath, summary, time.Now().UTC())
	if err != nil {
		return err
	}
	s.emit(EventSummarySaved, sessionID, "")
	return nil
}

// RecentSummaries returns the newest summaries for a project.
func (s *Store) RecentSummaries(ctx context.Context, projectPath string, count int) ([]string, error) {
	if count <= 0 {
		count = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT summary FROM session_summaries
		WHERE project_path = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, projectPath, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
