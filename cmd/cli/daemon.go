// cmd/cli/daemon.go – optional HTTP front-end for the engine: a read-only
// dex_view surface and a Prometheus /metrics scrape target, routed with
// gorilla/mux the way a long-running host process would sit in front of the
// otherwise CLI-only entry surface. Every request is tagged with a uuid
// correlation id echoed back as X-Request-Id, the same kind of id the CLI
// commands in deposit.go generate and log alongside their results.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	core "synnergy-network/core"
)

// correlationMiddleware assigns (or forwards) a request id so the daemon's
// access log lines up with the EVENT_JSON: lines the engine emits for the
// same call.
func correlationMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-Id")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", reqID)
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"request_id": reqID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"duration":   time.Since(start).String(),
			}).Info("daemon request")
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func dexViewHandler(w http.ResponseWriter, r *http.Request) {
	if core.CurrentEngine() == nil {
		writeJSONError(w, http.StatusServiceUnavailable, fmt.Errorf("engine not initialised"))
		return
	}
	vars := mux.Vars(r)
	dexID, err := core.ParseDexId(vars["deployer"] + "/" + vars["shortID"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	input, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	out, err := core.CurrentEngine().DexView(r.Context(), dexID, vars["export"], input)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(out)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if core.CurrentEngine() == nil {
		status = "engine not initialised"
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// NewDaemonRouter builds the mux.Router mounting the daemon's routes; split
// out from the cobra command so tests can exercise it with httptest without
// binding a real listener.
func NewDaemonRouter(log *logrus.Logger) *mux.Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := mux.NewRouter()
	r.Use(correlationMiddleware(log))
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/dex/{deployer}/{shortID}/view/{export}", dexViewHandler).Methods(http.MethodPost)
	return r
}

var daemonCmd = &cobra.Command{
	Use:               "daemon <listen-addr>",
	Short:             "Run the optional HTTP front-end (dex_view + /metrics)",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: ensureEngineInitialised,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.StandardLogger()
		router := NewDaemonRouter(log)
		log.Infof("daemon listening on %s", args[0])
		return http.ListenAndServe(args[0], router)
	},
}

// DaemonCmd is exported for mounting under the root command.
var DaemonCmd = daemonCmd
