// Package command implements the two-phase prepare/commit protocol used by
// effects whose outcome must be previewed before it is applied.
//
// A Handler's Prepare reads kingdom state, makes any random selection once
// and returns a Prepared value holding a description, badges and a commit
// closure. Nothing observable happens until Commit is called, and a Prepared
// value that is discarded instead produces no effects at all.
package command
