package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/summit/pkg/buildinfo"
)

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().String(),
	}
	if s.deps.Uploads != nil {
		body["upload_stage"] = s.deps.Uploads.Snapshot().Stage
	}
	c.JSON(http.StatusOK, body)
}

func versionHandler() http.HandlerFunc {
	return buildinfo.Handler(ServiceName)
}

func metricsHandler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
