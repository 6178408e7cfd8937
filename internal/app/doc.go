// Package app contains the core application logic. It wires settings,
// the export-backend registry, and the run ledger behind the operations
// the CLI dispatches, decoupled from any specific entrypoint.
package app
