package miio

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/foraone/fora-contrib-app-miio/internal/directory"
)

// TokenTable is the in-memory device access token table, keyed by numeric
// device id. It is rebuilt from directory config on every reload and
// optionally backed by the persistent TokenStore.
//
// Thread Safety: all methods are safe for concurrent use.
type TokenTable struct {
	mu     sync.RWMutex
	tokens map[int64]string
}

// NewTokenTable creates an empty token table.
func NewTokenTable() *TokenTable {
	return &TokenTable{tokens: make(map[int64]string)}
}

// Replace swaps the table contents for the directory-supplied entries.
// Entries with a non-numeric device id are skipped and reported.
//
// Returns the number of entries loaded and the ids that were skipped.
func (t *TokenTable) Replace(entries []directory.TokenEntry) (int, []string) {
	tokens := make(map[int64]string, len(entries))
	var skipped []string

	for _, e := range entries {
		id, err := strconv.ParseInt(e.DeviceID, 10, 64)
		if err != nil {
			skipped = append(skipped, e.DeviceID)
			continue
		}
		tokens[id] = e.Token
	}

	t.mu.Lock()
	t.tokens = tokens
	t.mu.Unlock()

	return len(tokens), skipped
}

// Merge adds entries without removing existing ones. Existing ids are not
// overwritten: directory entries loaded via Replace take precedence over
// merged (stored) ones.
func (t *TokenTable) Merge(tokens map[int64]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, token := range tokens {
		if _, exists := t.tokens[id]; !exists {
			t.tokens[id] = token
		}
	}
}

// Lookup returns the token for a numeric device id.
func (t *TokenTable) Lookup(id int64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	token, ok := t.tokens[id]
	return token, ok
}

// Resolve fills a registration's token from the table when the device
// hides its own. Returns false when no token can be resolved.
func (t *TokenTable) Resolve(reg *Registration) bool {
	if token, ok := t.Lookup(reg.ID); ok {
		reg.Token = token
	}
	return reg.HasToken()
}

// Snapshot returns a copy of the table contents.
func (t *TokenTable) Snapshot() map[int64]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int64]string, len(t.tokens))
	for id, token := range t.tokens {
		out[id] = token
	}
	return out
}

// Len returns the number of entries.
func (t *TokenTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tokens)
}

// TokenStore persists device tokens in the bridge's SQLite database so
// known devices can be opened while the directory is unreachable.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store on an opened database.
// The device_tokens table must exist (database.Setup creates it).
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// LoadAll reads all stored tokens.
func (s *TokenStore) LoadAll(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, token FROM device_tokens`)
	if err != nil {
		return nil, fmt.Errorf("loading device tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[int64]string)
	for rows.Next() {
		var id int64
		var token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("scanning device token: %w", err)
		}
		tokens[id] = token
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading device tokens: %w", err)
	}

	return tokens, nil
}

// SaveAll upserts the given tokens. Stored entries absent from the input
// are kept: a directory outage must not erase known tokens.
func (s *TokenStore) SaveAll(ctx context.Context, tokens map[int64]string) error {
	if len(tokens) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting token save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_tokens (device_id, token, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(device_id) DO UPDATE SET
			token = excluded.token,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing token save: %w", err)
	}
	defer stmt.Close()

	for id, token := range tokens {
		if _, err := stmt.ExecContext(ctx, id, token); err != nil {
			return fmt.Errorf("saving token for device %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing token save: %w", err)
	}
	return nil
}
