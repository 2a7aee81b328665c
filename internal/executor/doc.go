// Package executor binds pipeline tasks to the environments they run in.
//
// A bound task creates and launches its environment on first use, then
// calls module.function with its args over the environment's RPC channel.
// Tasks without an environment run in the controller process.
package executor
