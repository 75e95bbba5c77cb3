// Package schedule turns a classified video listing and a profile roster
// into a day-by-day assignment of (video, profile, platform, publish time).
//
// Allocation is deliberately sequential: profile order within a day is a
// single shuffle, and brand selection cycles round-robin per theme, so a
// seeded random source reproduces a schedule exactly.
package schedule
