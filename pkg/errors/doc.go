// Package errors provides standardized error definitions for the dirauth system.
// All error definitions are centralized here to ensure consistency across
// the pool, directory, and API components.
package errors
