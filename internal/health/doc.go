// Package health provides liveness/readiness checks and the HTTP handlers
// that expose them.
//
// [All] combines checks with AND semantics, [Any] with OR, [Fixed] is a
// constant. [Named] and [Timeout] wrap a dependency check so readiness
// reports which dependency failed and never hangs on it. [ShutdownGate]
// fails readiness during drain so load balancers stop routing new requests
// before the listeners close.
package health
