// Package selection implements the seeded clip picker.
//
// A Selector draws from a PCG generator seeded with a configured integer, so
// identical seeds, metadata, and catalogs reproduce the same picks. State
// records which assets each theme has already shown and which themes a verse
// range has exhausted; a theme's assets never repeat until its whole catalog
// has been shown once. State belongs to exactly one generation run.
package selection
