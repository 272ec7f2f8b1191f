// Package resource defines the kingdom resource ledger contract and the pure
// batch planning rules every ledger implementation applies.
//
// A batch is planned against a snapshot and then written as a whole: either
// every delta lands or none do. A deduction never drives a resource below its
// floor; the unpaid remainder is recorded as a shortfall and, for resources
// whose policy says so, converted one-for-one into unrest. Conversion happens
// once per resource per batch after deltas for the same resource are netted.
package resource
