// Package main hosts the framex CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the structured
// logger, and wires concrete media engines into extraction sessions. Frame
// extraction, probing, history listing, dependency checks, and configuration
// scaffolding each live in their own command file; the heavy lifting stays in
// internal packages.
package main
