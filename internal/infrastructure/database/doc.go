// Package database provides SQLite connectivity for the bridge's local
// state, currently the persistent device token store.
//
// The database is deliberately small: device records live in the remote
// directory and are never persisted locally. Only the miio access tokens
// fetched from the directory are cached here, so devices can still be
// opened when the directory is unreachable at startup.
//
// The database file is created with 0600 permissions: tokens grant full
// control over the physical devices.
package database
