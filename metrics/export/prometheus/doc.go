// Package prometheus renders goAccount engine metrics in the Prometheus text
// exposition format. Nothing is registered globally; mount [Exporter.Handler]
// wherever the scraper expects it.
package prometheus
