// Package rules loads and resolves immutable, versioned rule packs.
//
// A rule pack is a dated table of tax brackets or category rates with
// audit provenance (source URL and content digest). Packs are loaded
// once from a CUE definitions directory, validated, and held read-only
// for the process lifetime; resolving a (selector, as-of date) pair is
// a pure function over that immutable set.
//
// The repository deliberately refuses to apply the newest pack to a
// historical period: resolving "latest" for a date that precedes the
// newest pack's effectiveness fails with BACKDATING_REJECTED instead of
// silently drifting onto newer rules.
package rules
