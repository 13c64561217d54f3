// Package integrity provides hash and signing helpers used to keep the lease
// event journal tamper-evident.
//
// Why this package exists:
// - It ensures each stored event carries a deterministic content hash.
// - It signs each event independently, so deleting one event never
//   invalidates the signatures of the events that remain.
// - It isolates cryptographic details from higher-level storage code.
package integrity
