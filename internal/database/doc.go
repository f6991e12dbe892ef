// Package database provides SQLite persistence for conversion job history.
//
// Each submitted job gets a row holding its request, its lifecycle state
// (queued, running, succeeded, failed), the last observed progress and,
// once finished, its result. Rows survive restarts so clients can look up
// finished jobs; jobs interrupted by a restart are marked failed.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
