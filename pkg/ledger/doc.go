// Package ledger provides the stock panel data model, the pure stock and
// validation rules, and the Redis-backed transaction store.
//
// # Overview
//
// An owner is the user that created a control panel in a channel. Each owner
// carries two stocks: the farm stock, fed by REGISTER transactions and manual
// adjustments, and the production stock, fed by PRODUCE transactions.
//
// Transactions are recorded before they touch stock. REGISTER and PRODUCE
// transactions are created PENDING and wait for the submitter to attach a proof
// (or to decline); only then are they committed, together with the stock
// change. ADJUST transactions are recorded and applied in one step.
//
// # Stock arithmetic
//
// Quantities are exact decimals. ApplyDelta never leaves a key with a value
// less than or equal to zero: a balance that reaches zero, or would go
// negative, is removed from the map. Consumers treat "absent" and "zero" the
// same way.
//
// # Configuration values
//
// The store keeps four JSON-valued configuration keys. Each key decodes into
// its own type (ItemRules, ManagerRoles, MasterKey) through DecodeConfig, so the
// shape of a value is settled at the store boundary and never inspected by
// callers.
//
// # Multi-Instance Support
//
// Redis keys and Pub/Sub channels are namespaced by instance name so several
// panels can share one Redis server.
package ledger
