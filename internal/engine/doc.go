// Package engine is the coordination point above the pure calculators:
// it drains business events off a FIFO queue, resolves the rule pack
// for each event, computes the obligation, and accumulates it into the
// ledger.
//
// The run loop is single-consumer. Each event is fully processed
// before the next starts, so ledger mutations follow arrival order
// within one processor instance. That guarantee stops at the process
// boundary - cross-instance ordering belongs to whoever partitions the
// event feed, not to this package.
//
// An event either completes the whole received -> rule-resolved ->
// computed -> ledgered chain or leaves no trace: a resolution or
// computation failure never partially mutates the ledger.
package engine
