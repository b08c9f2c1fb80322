package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/weaveworks/common/middleware"

	"github.com/deployferry/ferry/pkg/api"
	transport "github.com/deployferry/ferry/pkg/http"
	ferrymetrics "github.com/deployferry/ferry/pkg/metrics"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "ferry",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{ferrymetrics.LabelMethod, ferrymetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// NewRouter is the daemon's API router. Anything that doesn't match a
// route is assumed to be a client speaking a different (or no) version
// of the API.
func NewRouter() *mux.Router {
	r := transport.NewAPIRouter()

	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})

	return r
}

func NewHandler(s api.Server, r *mux.Router) http.Handler {
	handle := HTTPServer{s}

	r.Get(transport.Ping).HandlerFunc(handle.Ping)
	r.Get(transport.Version).HandlerFunc(handle.Version)
	r.Get(transport.Notify).HandlerFunc(handle.Notify)
	r.Get(transport.TriggerRun).HandlerFunc(handle.TriggerRun)
	r.Get(transport.ListRuns).HandlerFunc(handle.ListRuns)
	r.Get(transport.RunStatus).HandlerFunc(handle.RunStatus)

	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

type HTTPServer struct {
	server api.Server
}

func (s HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.server.Ping(r.Context()); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) Version(w http.ResponseWriter, r *http.Request) {
	version, err := s.server.Version(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, version)
}

func (s HTTPServer) Notify(w http.ResponseWriter, r *http.Request) {
	var ev api.PushEvent
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := s.server.NotifyChange(r.Context(), ev)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

func (s HTTPServer) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, r, http.StatusBadRequest, err)
		return
	}
	result, err := s.server.TriggerRun(r.Context(), req)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, result)
}

func (s HTTPServer) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.server.ListRuns(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, runs)
}

func (s HTTPServer) RunStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.server.RunStatus(r.Context(), id)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, run)
}
