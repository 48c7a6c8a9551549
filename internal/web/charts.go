package web

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/internal/report"
)

func (s *Server) handleProfileHTML(w http.ResponseWriter, r *http.Request) {
	tr, unit, ok := s.lookupTrack(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderProfileHTML(&buf, tr.Name, tr.Calculator.Profile(), unit); err != nil {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "render profile chart failed", logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	tr, unit, ok := s.lookupTrack(w, r)
	if !ok {
		return
	}
	format, contentType := report.FormatPNG, "image/png"
	if strings.HasSuffix(r.URL.Path, ".svg") {
		format, contentType = report.FormatSVG, "image/svg+xml"
	}
	var buf bytes.Buffer
	if err := report.WriteProfileImage(&buf, format, tr.Name, tr.Calculator.Profile(), unit); err != nil {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "render profile image failed",
			logging.String("format", format), logging.Err(err))
		s.writeJSONError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = buf.WriteTo(w)
}
