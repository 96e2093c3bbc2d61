package db

import "sync"

// SQLiteWriteMutex serializes SQLite write transactions.
//
// SQLite allows a single writer at a time even with WAL enabled. Code that
// opens a write transaction (plan generation, status updates, overrides)
// must hold this lock for the duration of the transaction to avoid
// SQLITE_BUSY errors under concurrent case mutations.
var SQLiteWriteMutex sync.Mutex
