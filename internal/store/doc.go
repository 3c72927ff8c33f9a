// Package store provides SQLite-backed persistence for tasks, assets,
// workflow topology, and management alerts. A flock lock file beside the
// database keeps concurrent labelflow processes from sharing one database,
// and schema changes are applied through embedded migrations on open.
package store
