// Package main hosts the backdrop CLI entrypoint and command graph.
//
// The cobra command tree resolves configuration, builds the clip source and
// ffmpeg runner, and hands a verse range to the background manager. The
// remaining commands inspect theme metadata and clip catalogs, maintain the
// clip cache, and sweep run directories left by interrupted generations.
//
// Keep this package thin: behaviour belongs in internal packages, and
// commands only translate flags into calls and results into tables or JSON.
package main
