// Package environment creates, caches and launches isolated package
// environments.
//
// An environment lives under <root>/envs/<name> and is managed by a
// micromamba binary at <root>/bin. A launched environment is either Direct
// (the controller already has what the tools need and calls them in-process)
// or Client (a child process reached through an rpc.Client).
//
// The Registry is an explicit object built once by the application. Its
// environment table is guarded by a mutex, and launches of the same name are
// serialized so that two callers never start two children for one
// environment.
package environment
