package http

import (
	"context"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"medquiz-service/internal/app"
	"medquiz-service/internal/identity"
)

// LivenessCounter reports how many sessions are live across instances.
type LivenessCounter interface {
	LiveSessions(ctx context.Context) (int, error)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Verifier    *identity.Verifier
	CORSOrigins []string
	// Liveness is optional; /healthz includes its count when set.
	Liveness LivenessCounter
}

// NewRouter wires the REST API, the session websocket and /healthz behind
// identity, CORS, recovery and request logging middleware.
func NewRouter(service *app.QuizService, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(identity.Middleware(opts.Verifier, ReturnError))

	r.HandleFunc("/healthz", healthFunc(opts.Liveness)).Methods("GET")
	r.HandleFunc("/ws", NewWSHandler(service, originChecker(opts.CORSOrigins)).ServeWS)
	NewAPIHandler(service).SetupRoutes(r)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHeaders := handlers.AllowedHeaders([]string{"Authorization", "Content-Type"})
	corsOrigins := handlers.AllowedOrigins(origins)
	corsMethods := handlers.AllowedMethods([]string{"GET", "POST", "HEAD", "OPTIONS"})

	var h http.Handler = handlers.CORS(corsHeaders, corsOrigins, corsMethods)(r)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(glogPrinter{}))(h)
	return handlers.CustomLoggingHandler(io.Discard, h, logRequest)
}

type healthResponse struct {
	Status       string `json:"status"`
	LiveSessions *int   `json:"liveSessions,omitempty"`
}

func healthFunc(liveness LivenessCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if liveness != nil {
			if n, err := liveness.LiveSessions(r.Context()); err == nil {
				resp.LiveSessions = &n
			} else {
				glog.Warningf("healthz: count live sessions: %v", err)
			}
		}
		ReturnJSON(w, http.StatusOK, resp)
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	glog.V(2).Infof("%s %s %d %dB", p.Request.Method, p.URL.RequestURI(), p.StatusCode, p.Size)
}

type glogPrinter struct{}

func (glogPrinter) Println(v ...interface{}) {
	glog.Error(v...)
}
