package relay

// Package relay implements the debounced, ordered relay queue and the
// dispatcher that republishes queued audio to the public channel.
//
// Tracks forwarded to the bot tend to arrive in bursts. Instead of posting
// (and rate-limiting against) each one individually, admissions are collected
// in an ordered queue and a single drain worker waits for a quiet interval
// before snapshotting the whole queue as one batch. The worker performs
// exactly one drain pass and exits; anything admitted while a pass is in
// flight stays queued until the next admission starts a fresh worker. This
// bounds worker lifetime and avoids idle polling at the cost of a little
// extra latency for back-to-back bursts.
