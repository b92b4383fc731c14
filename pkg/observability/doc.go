/*
Package observability turns engine lifecycle events into signals.

Metrics exposes Prometheus collectors fed by domain.LifecycleHooks, and
LogHooks writes the same events to a structured logger. Both are plain
hook sets, so they compose with domain.LifecycleHooks.Merge:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	engine, err := guidance.New(guidance.WithLifecycleHooks(hooks))
*/
package observability
