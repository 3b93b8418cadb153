// Package checkpoint remembers downloads that were started but never seen
// to finish.
//
// When a download click produces no new file within the settle window the
// resource is marked pending, together with the directory listing taken just
// before the click. The next time Resolve runs (at the end of the run and at
// the start of the following one) each pending entry is matched against the
// files that appeared since its snapshot. Exactly one unclaimed file resolves
// the entry into a mapping record; anything else leaves it pending, and the
// resource goes through reconciliation and, if still missing, a fresh
// download.
//
// The checkpoint lives next to the downloads as .magistodl-pending.json and
// is written atomically. It is removed once nothing is pending.
package checkpoint
