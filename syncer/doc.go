// Package syncer reconciles the local save document against the remote
// authoritative copy: it decides between upload, download, merge, and
// conflict by comparing logical timestamps, and resolves conflicts under a
// configured strategy.
//
// Reconciliation is coarse by design: a timestamp comparison plus typed
// per-section merge rules, not an operational-transform or CRDT merge.
package syncer
