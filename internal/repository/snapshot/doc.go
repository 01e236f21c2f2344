// Package snapshot persists the last-known garage snapshot.
//
// Only the latest snapshot is kept, never a history. The FileRepository
// stores it as protobuf JSON; the SQLiteRepository keeps one row in a
// local database. The daemon restores the snapshot on start so the first
// periodic write after a restart does not publish zeros.
package snapshot
