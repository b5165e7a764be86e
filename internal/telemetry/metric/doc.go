// Package metric provides Prometheus metrics for hostgate.
//
//   - prometheus.go: Registry with the request, handler, admin and TLS
//     series and the /metrics HTTP handler
//   - collector.go: scrape-time collector for handler cache occupancy
//
// Every Registry method is safe on a nil receiver so components can run
// without metrics in tests.
package metric
