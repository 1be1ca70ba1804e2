// Package harness runs compiler conformance cases.
//
// A case is a YAML file describing a source tree (or one inline source
// text), the compiler settings to use, and what the run must produce:
//
//	name: finance_imports
//	description: "Wildcard imports resolve across units"
//	mode: collect-all        # or fail-fast
//	workers: 2
//	platform: false          # skip bytecode and debug artifacts
//	files:
//	  finance/rates.scala: |
//	    package finance.rates
//	    def convert(amount: Float, rate: Float): Float = amount * rate
//	  app.scala: |
//	    import finance.rates._
//	    def fee(): Float = convert(1.0, 0.5)
//	expect:
//	  status: ok
//	  artifacts: [app.mir, finance/rates.mir]
//	  codes: []
//	  outcomes:
//	    app.scala: ok
//	golden: true
//
// Exactly one of files and text must be given. Artifact paths are relative
// to the run's output directory and listed in production order.
//
// # Deterministic Runs
//
// Every case runs in its own directory with a sequential run id, a step
// clock and a fresh SQLite ledger, so the same case always yields the same
// snapshot. With golden set, the snapshot (outcomes, artifacts,
// diagnostics and the printed form of every MIR artifact) is compared
// against testdata/golden/<name>.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
