package db

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tgienger/depplan/internal/models"
)

const (
	keyToken       = "session_token"
	keyUser        = "session_user"
	keyLastProject = "last_project_id"
)

// Session is the persisted sign-in state.
type Session struct {
	Token string
	User  models.User
}

// SaveSession stores the token and user profile together.
func (db *DB) SaveSession(s Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("db.SaveSession: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db.SaveSession: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{keyToken: s.Token, keyUser: string(user)} {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return fmt.Errorf("db.SaveSession: %w", err)
		}
	}
	return tx.Commit()
}

// LoadSession returns the stored session, or nil when nobody is signed in.
func (db *DB) LoadSession() (*Session, error) {
	token, err := db.GetSetting(keyToken)
	if err != nil {
		return nil, fmt.Errorf("db.LoadSession: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	s := &Session{Token: token}
	raw, err := db.GetSetting(keyUser)
	if err != nil {
		return nil, fmt.Errorf("db.LoadSession: %w", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.User); err != nil {
			return nil, fmt.Errorf("db.LoadSession: user profile: %w", err)
		}
	}
	return s, nil
}

// ClearSession forgets the token, the profile and the last opened project.
func (db *DB) ClearSession() error {
	_, err := db.Exec("DELETE FROM settings WHERE key IN (?, ?, ?)", keyToken, keyUser, keyLastProject)
	if err != nil {
		return fmt.Errorf("db.ClearSession: %w", err)
	}
	return nil
}

// LastProjectID returns the project to reopen on start, or 0.
func (db *DB) LastProjectID() (int64, error) {
	raw, err := db.GetSetting(keyLastProject)
	if err != nil || raw == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// a corrupt value is treated as unset
		return 0, nil
	}
	return id, nil
}

// SetLastProjectID records the project being viewed; 0 clears it.
func (db *DB) SetLastProjectID(id int64) error {
	if id == 0 {
		return db.DeleteSetting(keyLastProject)
	}
	return db.SetSetting(keyLastProject, strconv.FormatInt(id, 10))
}
