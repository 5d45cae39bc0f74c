// Package database provides PostgreSQL connection pool management for the
// optional event journal.
//
// The realtime client never touches the database; only the streamer binary
// opens a pool when database.enabled is set.
package database
