// Package httpmw provides HTTP middleware for the public document server.
//
// httpserver.NewHandler composes them outermost first: recover, security
// headers, request ID, client IP, rate limiting, OTel tracing, trace response
// headers, metrics, request logger, access log, route annotation, and finally
// the chi router.
//
// Request logs carry only server-derived fields. Query strings, user agents
// and arbitrary headers are left out to avoid leaking PII and to keep
// attacker-controlled text out of log lines.
package httpmw
