package db

import (
	"fmt"

	"github.com/tgienger/depplan/internal/models"
)

// ReplaceProjectCache swaps the cached project list for projects.
func (db *DB) ReplaceProjectCache(projects []models.Project) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db.ReplaceProjectCache: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM project_cache"); err != nil {
		return fmt.Errorf("db.ReplaceProjectCache: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO project_cache (id, name, description, created_at) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("db.ReplaceProjectCache: %w", err)
	}
	defer stmt.Close()

	for _, p := range projects {
		created := ""
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Format(models.TimestampLayout)
		}
		if _, err := stmt.Exec(p.ID, p.Name, p.Description, created); err != nil {
			return fmt.Errorf("db.ReplaceProjectCache: project %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// CachedProjects returns the last fetched project list, in id order.
func (db *DB) CachedProjects() ([]models.Project, error) {
	rows, err := db.Query(`
		SELECT id, name, description, created_at
		FROM project_cache ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("db.CachedProjects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var created string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &created); err != nil {
			return nil, fmt.Errorf("db.CachedProjects: %w", err)
		}
		if p.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, fmt.Errorf("db.CachedProjects: project %d: %w", p.ID, err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CachedProject looks up one cached project.
func (db *DB) CachedProject(id int64) (*models.Project, bool, error) {
	projects, err := db.CachedProjects()
	if err != nil {
		return nil, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return &p, true, nil
		}
	}
	return nil, false, nil
}
