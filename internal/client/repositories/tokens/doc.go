// Package tokens persists the client's token pair and last-activity time.
//
// Two implementations satisfy Store: SQLiteStore keeps the values in a local
// SQLite file (pure-Go modernc driver, schema applied with goose) so a
// session survives restarts, and MemoryStore keeps them for the lifetime of
// the process. Load returns (nil, nil) when nothing is stored.
package tokens
