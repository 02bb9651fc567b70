/*
Package journal keeps a durable record of every request the gateway handled.

Each pipeline execution hands an access entry to a Recorder, which converts
it to a Record and writes it to a Storage backend on a background worker so
that the request path never waits on disk. When the recorder's buffer is
full the record is dropped and counted instead.

Two backends are provided:

  - MemoryStorage keeps the newest records in memory, bounded by MaxRecords.
  - SQLiteStorage writes to a SQLite file using either the pure Go driver
    ("sqlite", modernc.org/sqlite) or the cgo driver ("sqlite3",
    github.com/mattn/go-sqlite3).

A Pruner deletes records older than the retention period, and a Scheduler
runs it on a cron schedule:

	store, _ := journal.Open(journal.Config{Backend: "sqlite", SQLite: journal.SQLiteConfig{Path: "data/journal.db"}}, logger)
	rec := journal.NewRecorder(store, journal.RecorderConfig{AsyncBuffer: 1000}, logger, metrics)
	defer rec.Close()

	pruner := journal.NewPruner(store, journal.RetentionConfig{Days: 30, PruneSchedule: "0 3 * * *"}, logger)
	_ = pruner.Start(ctx)
*/
package journal
