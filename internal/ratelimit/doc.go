// Package ratelimit is per-client-IP token bucket rate limiting for the
// document server, with background eviction of idle entries.
//
// State is in-memory and local to one process. It blunts a single address
// flooding the server and records who was limited; distributed floods and
// bandwidth attacks need upstream filtering (WAF, CDN).
//
// Each offender is logged once per visitor entry, while every denial is
// counted through the OnDenied hook.
package ratelimit
