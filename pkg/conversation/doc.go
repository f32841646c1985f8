// Package conversation indexes and traverses conversations stored as
// backward-linked chains of ledger events.
//
// Every event recorded for a conversation carries its message and the Pointer
// (block height) of the previous event for the same conversation. A Rewinder
// walks those pointers backward to materialize recent history, and a Follower
// subscribes forward from a Pointer to deliver new events as they are mined.
//
// The package never talks to a chain directly; everything goes through the
// Ledger interface so the traversal can run against the EVM client in
// pkg/ledger/evm or the in-memory ledger in pkg/ledger/inmemory.
package conversation
