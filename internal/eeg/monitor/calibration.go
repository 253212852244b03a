package monitor

import (
	"net/http"

	"github.com/synapse-data/gaze.report/internal/httputil"
)

// The calibration routes walk an operator through a guided run: begin a
// labeled segment, capture buffer snapshots while the user performs the
// movement, end the segment, then save to derive and apply thresholds.

func (ws *WebServer) calibrationSurface(w http.ResponseWriter, r *http.Request, method string) (Calibration, bool) {
	if r.Method != method {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	if ws.calibration == nil {
		httputil.NotFound(w, "calibration is not enabled")
		return nil, false
	}
	return ws.calibration, true
}

func (ws *WebServer) handleCalibrationStatus(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodGet)
	if !ok {
		return
	}
	active, segments := cal.Status()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"active":   active,
		"segments": segments,
	})
}

func (ws *WebServer) handleCalibrationBegin(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodPost)
	if !ok {
		return
	}
	label := r.URL.Query().Get("label")
	if err := cal.Begin(label); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"active": label})
}

func (ws *WebServer) handleCalibrationCapture(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodPost)
	if !ok {
		return
	}
	n, err := cal.Capture()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"samples": n})
}

func (ws *WebServer) handleCalibrationEnd(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodPost)
	if !ok {
		return
	}
	if err := cal.End(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	_, segments := cal.Status()
	httputil.WriteJSONOK(w, map[string]interface{}{"segments": segments})
}

func (ws *WebServer) handleCalibrationAbort(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodPost)
	if !ok {
		return
	}
	cal.Abort()
	httputil.WriteJSONOK(w, map[string]interface{}{"segments": 0})
}

func (ws *WebServer) handleCalibrationSave(w http.ResponseWriter, r *http.Request) {
	cal, ok := ws.calibrationSurface(w, r, http.MethodPost)
	if !ok {
		return
	}
	ts, session, err := cal.Save(r.URL.Query().Get("notes"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session":    session,
		"thresholds": ts,
	})
}
