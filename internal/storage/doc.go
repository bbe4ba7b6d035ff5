package storage

// Package storage keeps the history of tracks already relayed to the channel.
//
// It is observability, not relay state: the queue and the id tracker are
// deliberately in-memory only, and nothing here sits on the relay path.
// A nil Store is a valid "disabled" store for all callers.
