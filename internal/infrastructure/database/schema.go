package database

// schema is the bridge's local schema: the persistent device token store.
// Tokens survive directory outages so known devices can still be opened.
const schema = `
CREATE TABLE IF NOT EXISTS device_tokens (
    device_id  INTEGER PRIMARY KEY,
    token      TEXT    NOT NULL,
    updated_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`
