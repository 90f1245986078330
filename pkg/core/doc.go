// Package core defines the shared language of the subfarm system.
//
// This package contains:
//   - The Status classification vocabulary and its display kinds
//   - Domain entities (Task, TaskGroup, Matrix, Manifest, LogRecord)
//   - The LogClassifier contract consumed by the status aggregator
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core
