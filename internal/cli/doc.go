// Package cli parses flags and runs the sharedvars subcommands.
//
//	sharedvars serve                      run the variable server until quit
//	sharedvars add <name> <kind> <value>  push one variable to a running server
//	sharedvars quit                       send the quit handshake
//	sharedvars journal [path]             print an audit journal
//
// Global flags:
//
//	-c, --config     Path to a TOML config file.
//	-a, --addr       Server address, overriding host and port from the config.
//	-l, --log-level  trace, debug, info, warn or error.
package cli
