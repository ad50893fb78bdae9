// Package cli implements the command-line interface for hearing-sync.
//
// The cli package provides the Cobra-based CLI with the sync run itself plus
// login, cache and export subcommands. It wires configuration, the token
// cache, the interactive authenticator, the court clients and the output
// sinks into one pipeline and reports the result as text or JSON.
package cli
