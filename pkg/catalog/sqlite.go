// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteRepository serves the rule catalog from a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the catalog database at path.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite catalog path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite catalog: %w", err)
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if path != ":memory:" {
		_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite catalog: %w", err)
	}

	logrus.Infof("opened sqlite rule catalog at %s", path)
	return &SQLiteRepository{db: db}, nil
}

// Ping checks that the database answers and holds at least one rule.
func (s *SQLiteRepository) Ping(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&n); err != nil {
		return fmt.Errorf("sqlite catalog unreachable: %w", err)
	}
	if n == 0 {
		return ErrEmptyCatalog
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes rule definitions, replacing the levels of existing rules.
func (s *SQLiteRepository) Upsert(ctx context.Context, rules []Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range rules {
		rule := &rules[i]
		if err := rule.Validate(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules(id, name, type) VALUES(?,?,?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type`,
			rule.ID, rule.Name, string(rule.Type),
		); err != nil {
			return fmt.Errorf("failed to upsert rule %s: %w", rule.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM difficulty_levels WHERE rule_id = ?`, rule.ID); err != nil {
			return fmt.Errorf("failed to clear levels of rule %s: %w", rule.ID, err)
		}

		for _, lvl := range rule.Levels {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO difficulty_levels(rule_id, level, duration_seconds, amount) VALUES(?,?,?,?)`,
				rule.ID, lvl.Level, nullInt(lvl.DurationSeconds), nullInt(lvl.Amount),
			); err != nil {
				return fmt.Errorf("failed to insert level %d of rule %s: %w", lvl.Level, rule.ID, err)
			}
		}
	}

	return tx.Commit()
}

// FindByID implements Repository.
func (s *SQLiteRepository) FindByID(ctx context.Context, ruleID string) (*Rule, error) {
	var rule Rule
	var ruleType string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, type FROM rules WHERE id = ?`, ruleID).
		Scan(&rule.ID, &rule.Name, &ruleType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule %s: %w", ruleID, err)
	}
	rule.Type = RuleType(ruleType)

	rows, err := s.db.QueryContext(ctx,
		`SELECT level, duration_seconds, amount FROM difficulty_levels WHERE rule_id = ? ORDER BY level`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query levels of rule %s: %w", ruleID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var lvl DifficultyLevel
		var duration, amount sql.NullInt64
		if err := rows.Scan(&lvl.Level, &duration, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan level of rule %s: %w", ruleID, err)
		}
		lvl.DurationSeconds = intPtr(duration)
		lvl.Amount = intPtr(amount)
		rule.Levels = append(rule.Levels, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &rule, nil
}

// FindByIDAndLevel implements Repository.
func (s *SQLiteRepository) FindByIDAndLevel(ctx context.Context, ruleID string, level int) (*Rule, *DifficultyLevel, error) {
	rule, err := s.FindByID(ctx, ruleID)
	if err != nil {
		return nil, nil, err
	}

	lvl, ok := rule.Level(level)
	if !ok {
		return rule, nil, fmt.Errorf("%w: rule %s level %d", ErrLevelNotFound, ruleID, level)
	}
	return rule, lvl, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
