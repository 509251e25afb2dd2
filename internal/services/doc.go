// Package services defines shared utilities consumed by the background
// pipeline components and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and stage names for logging.
//   - Structured error markers plus the Wrap helper so configuration,
//     transport, data, and encoding failures can be told apart with errors.Is.
//
// Use these helpers when wiring new components so failures classify the same
// way across the pipeline and the manager can report why it fell back.
package services
