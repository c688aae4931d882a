// Package engine provides the core run orchestration engine for Gantry.
// This package consolidates the following functionality:
// - Matrix scheduling with a bounded worker group
// - Dependency wiring for the pipeline executor
// - Release sequencing for the final matrix cell
package engine

// This file serves as the package documentation.
// The actual implementation is split across multiple files for clarity:
// - gantry.go: Core orchestration engine
// - factory.go: Dependency injection factory
// - safegroup.go: Panic-safe concurrency utilities
