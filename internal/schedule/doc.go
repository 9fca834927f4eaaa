// Package schedule maps catalog positions onto calendar dates. Every function
// here is pure: the same sequence, configuration and "today" always produce
// the same classification, which keeps status reports deterministic and makes
// daemon polling safe.
package schedule
