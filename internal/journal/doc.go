// Package journal persists what the hub decided and why.
//
// Two append-only tables back it: state_transitions records every fixture
// and connectivity change with its originating actor, and decisions
// records each presence cycle's outcome with its evidence count and wall
// time. Both exist for after-the-fact review ("who opened the gate at
// 3am") rather than for any runtime behavior.
package journal
