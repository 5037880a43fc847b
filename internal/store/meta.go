package store

import (
	"context"
	"database/sql"
	"strings"
)

// GetMeta returns the value for key and whether it was present
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get meta", err)
	}
	return v, true, nil
}

// SetMeta upserts a single meta value
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	_, err := s.db.ExecContext(ctx, upsertMetaSQL, key, value)
	return wrap("set meta", err)
}

// AllMeta returns every meta key/value pair
func (s *Store) AllMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta ORDER BY key`)
	if err != nil {
		return nil, wrap("all meta", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrap("all meta", err)
		}
		out[k] = v
	}
	return out, wrap("all meta", rows.Err())
}

// UpdateMeta reads keys, passes the current values (missing keys absent) to
// fn, and writes back whatever fn returns, all in one transaction. No other
// meta write can interleave. If fn returns an error nothing is written and
// that error is returned as is.
func (s *Store) UpdateMeta(ctx context.Context, keys []string, fn func(cur map[string]string) (map[string]string, error)) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	var fnErr error
	err := s.withTx(ctx, "update meta", func(tx *sql.Tx) error {
		cur := make(map[string]string, len(keys))
		if len(keys) > 0 {
			args := make([]any, len(keys))
			for i, k := range keys {
				args[i] = k
			}
			q := `SELECT key, value FROM meta WHERE key IN (?` + strings.Repeat(",?", len(keys)-1) + `)`
			rows, err := tx.QueryContext(ctx, q, args...)
			if err != nil {
				return err
			}
			for rows.Next() {
				var k, v string
				if err := rows.Scan(&k, &v); err != nil {
					rows.Close()
					return err
				}
				cur[k] = v
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		for k, v := range next {
			if _, err := tx.ExecContext(ctx, upsertMetaSQL, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

const upsertMetaSQL = `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
`
