// Package storage records the outcome of every scheduled firing.
//
// Schedules themselves are never persisted; they are rebuilt from the task
// definitions on every start. Only firing history survives restarts.
package storage
