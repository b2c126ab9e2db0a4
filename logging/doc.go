// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. The call executor logs attempt lifecycle through this
// interface; emission is best-effort and never influences call outcomes.
package logging
