/*
Package observability turns engine lifecycle events into Prometheus metrics and
structured log lines.

Both are delivered as domain.LifecycleHooks, so they compose with each other and
with caller-supplied hooks through domain.ComposeHooks.
*/
package observability
