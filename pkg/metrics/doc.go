// Package metrics holds the Prometheus collectors for harvest jobs and an
// optional /metrics endpoint.
package metrics
