// Package harness runs scripted key scenarios against the engine and
// checks the resulting journal.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: hold_down_release
//	description: "Hold-down action is released with the trigger"
//	config: keymaps.yaml          # or inline_config: |
//	facts:
//	  screen_on: true
//	fail_kinds: [shell]           # optional
//	steps:
//	  - down: 24
//	  - advance: 100ms
//	  - up: 24
//	  - facts: {screen_on: false}
//	  - tap: 24
//	  - reset: true
//	  - reload: |
//	      keymaps: [...]
//	assertions:
//	  - type: perform_order
//	    performs: ["DOWN key_event(25)", "UP key_event(25)"]
//	  - type: journal
//	    expect: {firings: 2, performs: 2}
//
// # Assertion Types
//
//   - performed: a perform of action (optionally event and keymap) exists
//   - perform_order: "<EVENT> <action>" performs appear in order
//   - perform_count: exactly count performs, optionally filtered
//   - firing_count: exactly count firings, optionally by keymap and signal
//     (fired, released, blocked)
//   - journal: store summary counts for a keymap or the whole journal
//   - idle: nothing is held or repeating at the end
//
// # Deterministic Testing
//
// Every run uses a virtual scheduler starting at Epoch, a fresh in-memory
// journal, and sequential key map UIDs ("keymap-N") and firing IDs
// ("firing-N"), so traces are identical across runs and can be compared
// with golden files (see RunWithGolden).
package harness
