// Package cli turns command-line arguments into a Command and its app.Config,
// runs the command against an App and maps failures to exit codes.
package cli
