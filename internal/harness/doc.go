// Package harness provides conformance testing for the calculation
// pipeline.
//
// A scenario is a YAML document naming a rule pack directory, a list
// of business events, optional reported balances and an optional BAS
// label mapping. The harness drains the events through a processor
// with deterministic tokens and clock, reconciles the resulting
// ledger and renders everything into a stable JSON snapshot for
// golden file comparison.
//
// # Scenario format
//
//	name: quarterly_gst
//	description: "What this scenario exercises"
//	packs: packs                # pack definitions dir, relative to the scenario file
//	mapping: mapping.yaml       # optional label mapping, relative likewise
//	events:
//	  - token: ev-1
//	    entity_id: entity-1
//	    kind: GST
//	    amount: "100.00"
//	    category: standard
//	    period: "2024-08-15"
//	    pack: gst-2024.1
//	balances:
//	  - entity_id: entity-1
//	    kind: GST
//	    balance: "10.00"
//	    reference: ATO-STMT-1
//	expect:
//	  discrepancies: 1
//	  totals:
//	    - entity_id: entity-1
//	      kind: GST
//	      total: "10.00"
//	  labels:
//	    entity-1:
//	      "1A": "10"
//
// The expect block holds inline assertions checked next to the golden
// comparison; only declared fields are verified.
//
// Tokens omitted from events are assigned deterministically (ev-1,
// ev-2, ...) so snapshots stay identical across runs.
//
// # Golden files
//
// Snapshots live in testdata/golden/{name}.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
