package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gridwell/gridwell/internal/grid"
)

// DefaultViewName is the name given to the lazily created default view.
const DefaultViewName = "Grid view"

// CreateView adds a named view to a table. The first view of a table
// becomes the default automatically.
func (s *Store) CreateView(ctx context.Context, tableID, name string, cfg grid.ViewConfig) (grid.View, error) {
	if strings.TrimSpace(name) == "" {
		return grid.View{}, validation("view", "", "create", "name must not be empty")
	}
	if err := cfg.Validate(); err != nil {
		return grid.View{}, validation("view", "", "create", err.Error())
	}

	configJSON, err := grid.MarshalConfig(cfg)
	if err != nil {
		return grid.View{}, validation("view", "", "create", err.Error())
	}

	var view grid.View
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tableExists(ctx, tx, tableID, "create view"); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM views WHERE table_id = ?
		`, tableID).Scan(&count); err != nil {
			return fmt.Errorf("create view: count: %w", err)
		}

		view = grid.View{
			ID:        grid.NewID(),
			TableID:   tableID,
			Name:      name,
			Config:    cfg,
			IsDefault: count == 0,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO views (id, table_id, name, config, is_default)
			VALUES (?, ?, ?, ?, ?)
		`, view.ID, view.TableID, view.Name, configJSON, boolToInt(view.IsDefault)); err != nil {
			return fmt.Errorf("create view: %w", err)
		}
		return nil
	})
	if err != nil {
		return grid.View{}, err
	}

	s.logger.Debug("view created", "table_id", tableID, "view_id", view.ID, "default", view.IsDefault)
	return view, nil
}

// ListViews returns a table's views, default first, then by name.
func (s *Store) ListViews(ctx context.Context, tableID string) ([]grid.View, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, name, config, is_default
		FROM views
		WHERE table_id = ?
		ORDER BY is_default DESC, name ASC, id COLLATE BINARY ASC
	`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := []grid.View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return views, nil
}

// GetView retrieves a view by id.
func (s *Store) GetView(ctx context.Context, viewID string) (grid.View, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, table_id, name, config, is_default FROM views WHERE id = ?
	`, viewID)

	v, err := scanViewRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.View{}, notFound("view", viewID, "get")
	}
	return v, err
}

// UpdateViewConfig replaces a view's sort/filter/hidden configuration.
func (s *Store) UpdateViewConfig(ctx context.Context, viewID string, cfg grid.ViewConfig) (grid.View, error) {
	if err := cfg.Validate(); err != nil {
		return grid.View{}, validation("view", viewID, "update", err.Error())
	}
	configJSON, err := grid.MarshalConfig(cfg)
	if err != nil {
		return grid.View{}, validation("view", viewID, "update", err.Error())
	}

	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return grid.View{}, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE views SET config = ? WHERE id = ?
	`, configJSON, viewID); err != nil {
		return grid.View{}, fmt.Errorf("update view config: %w", err)
	}
	view.Config = cfg
	return view, nil
}

// RenameView changes a view's display name.
func (s *Store) RenameView(ctx context.Context, viewID, name string) (grid.View, error) {
	if strings.TrimSpace(name) == "" {
		return grid.View{}, validation("view", viewID, "rename", "name must not be empty")
	}
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return grid.View{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE views SET name = ? WHERE id = ?
	`, name, viewID); err != nil {
		return grid.View{}, fmt.Errorf("rename view: %w", err)
	}
	view.Name = name
	return view, nil
}

// DeleteView removes a view. Deleting the default view is rejected:
// retarget the default first with SetDefaultView.
func (s *Store) DeleteView(ctx context.Context, viewID string) error {
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return err
	}
	if view.IsDefault {
		return validation("view", viewID, "delete", "cannot delete the default view")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE id = ?`, viewID); err != nil {
		return fmt.Errorf("delete view: %w", err)
	}
	s.logger.Debug("view deleted", "view_id", viewID)
	return nil
}

// SetDefaultView flags one view as the table's default, clearing the
// flag from every sibling in the same transaction so exactly one
// default exists at commit.
func (s *Store) SetDefaultView(ctx context.Context, viewID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var tableID string
		err := tx.QueryRowContext(ctx, `
			SELECT table_id FROM views WHERE id = ?
		`, viewID).Scan(&tableID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("view", viewID, "set default")
		}
		if err != nil {
			return fmt.Errorf("set default view: lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE views SET is_default = 0 WHERE table_id = ?
		`, tableID); err != nil {
			return fmt.Errorf("set default view: clear: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE views SET is_default = 1 WHERE id = ?
		`, viewID); err != nil {
			return fmt.Errorf("set default view: set: %w", err)
		}
		return nil
	})
}

// EnsureDefaultView returns the table's default view, lazily creating
// one when the table has no views at all.
func (s *Store) EnsureDefaultView(ctx context.Context, tableID string) (grid.View, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, table_id, name, config, is_default
		FROM views
		WHERE table_id = ? AND is_default = 1
	`, tableID)

	v, err := scanViewRow(row)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return grid.View{}, err
	}

	if _, err := s.GetTable(ctx, tableID); err != nil {
		return grid.View{}, err
	}
	return s.CreateView(ctx, tableID, DefaultViewName, grid.ViewConfig{})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(sc rowScanner) (grid.View, error) {
	var v grid.View
	var configJSON string
	var isDefault int
	if err := sc.Scan(&v.ID, &v.TableID, &v.Name, &configJSON, &isDefault); err != nil {
		return grid.View{}, err
	}
	cfg, err := grid.UnmarshalConfig(configJSON)
	if err != nil {
		return grid.View{}, fmt.Errorf("scan view: %w", err)
	}
	v.Config = cfg
	v.IsDefault = isDefault != 0
	return v, nil
}

func scanViewRow(row *sql.Row) (grid.View, error) {
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.View{}, err
	}
	if err != nil {
		return grid.View{}, err
	}
	return v, nil
}
