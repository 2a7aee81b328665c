// Package app contains the core application logic. It wires the pipeline
// loader, environment registry, executor, scheduler and event sinks, and
// defines the execution lifecycle, decoupled from any specific entrypoint
// like a CLI or server.
package app
