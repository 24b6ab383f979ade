// Package document defines the SaveDocument: the canonical structured record
// of a player's progress, together with its checksum, validation, repair, and
// merge operations.
//
// A Document is a plain value type which travels through the persistence and
// sync layers as JSON. Types which can be validated implement the Validator
// interface, and validation errors carry nested field context so that a
// failure deep within a section reads as, eg,
// "vehicles.upgrades[mustang]: invalid upgrade level (-2; expected >= 0)".
//
// Merge semantics are deliberately coarse: per-section typed merge functions
// rather than a generic deep merge, so that each field's invariant is enforced
// at the point where two documents are combined.
package document
