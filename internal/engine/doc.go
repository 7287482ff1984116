// Package engine runs key maps: it feeds normalized key events to trigger
// matchers, gates fired triggers on their constraints and hands satisfied
// ones to action dispatchers.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All binding state changes happen under one engine lock. Key events,
// scheduler continuations (long-press timers, action walks, repeats) and
// reloads are serialized through it, so a binding never sees two events at
// once and the journal is written in a single order.
//
// Event Processing Flow:
//  1. Key events arrive through Handle (synchronous, returns the consume
//     decision) or Enqueue + Run (FIFO queue, one goroutine).
//  2. Every binding's matcher sees the event in key map order, through a
//     matcher.Set that holds back a short press while a long or double
//     press on the same key can still claim it.
//  3. A Fired signal takes one snapshot from the constraint provider and
//     evaluates the binding's gate: its own state and its group chain.
//  4. Satisfied firings start the binding's dispatcher; Released signals
//     stop repeats and release held actions.
//  5. Every signal and every sink call is journaled with a seq from Clock.
//
// Reloads diff the old and new key map sets. Unchanged bindings keep their
// runtime state; removed and changed bindings are reset before the new ones
// take over.
package engine
