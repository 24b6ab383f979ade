// Package store implements durable local persistence of save documents: a
// bounded key-value capability with pluggable backends, the primary-slot
// persistence pipeline (serialize, compress, checksum), the rotating backup
// ring with recovery, the corruption monitor, and the export/import envelope.
//
// The persistence pipeline never fails the surrounding application: quota and
// corruption errors are surfaced as typed errors which callers log and
// tolerate, with the in-memory document remaining authoritative.
package store
