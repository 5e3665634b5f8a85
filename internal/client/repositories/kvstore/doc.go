// Package kvstore provides the durable key/value storage underneath the local
// cache.
//
// # Overview
//
// The package defines a Repository interface with get/set/delete semantics
// over opaque byte values. The SQLite-backed implementation (SQLiteRepository)
// keeps one row per key in the kv table created by the localdb migrations and
// resolves its handle through dbx.Conn, so calls made inside dbx.WithTx join
// the caller's transaction.
//
// # Atomicity
//
// Set is a single upsert statement; a concurrent reader observes either the
// previous or the new value, never a partial one.
//
// Typical Usage
//
//	repo := kvstore.NewSQLiteRepository(db)
//	_ = repo.Set(ctx, "babies", payload)
//	v, _ := repo.Get(ctx, "babies")
//	_ = repo.DeleteMany(ctx, []string{"babies", "milestones"})
package kvstore
