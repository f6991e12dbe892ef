package handlers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-converter/internal/logging"
)

// promErrorLog sends scrape encoding errors to the application log.
type promErrorLog struct{}

func (promErrorLog) Println(v ...interface{}) {
	logging.Warn("metrics: %s", fmt.Sprint(v...))
}

// MetricsHandler serves the default registry. A failing collector is logged
// and skipped so the conversion metrics still reach the scraper.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}
