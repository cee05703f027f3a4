// Package health serves the gateway's liveness and readiness probes.
//
// /healthz answers 200 as long as the process can serve HTTP. /readyz runs
// every registered [Checker] concurrently and answers 200 only when all of
// them pass, otherwise 503. Both reply with
//
//	{"status": "ok"|"fail", "checks": {"<name>": "ok"|"fail: <reason>"}}
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when it is usable and
// must honour ctx cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New returns a Handler whose /readyz evaluates checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts GET /healthz and GET /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz reports 200 when every checker passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.evaluate(r.Context())
	code := http.StatusOK
	if rep.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// evaluate runs all checkers in parallel, each under its own deadline.
func (h *Handler) evaluate(ctx context.Context) report {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	rep := report{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		if errs[i] != nil {
			rep.Status = "fail"
			rep.Checks[c.Name] = "fail: " + errs[i].Error()
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	return rep
}

// ListenerCheck passes while ready reports true.
func ListenerCheck(ready func() bool) Checker {
	return Checker{
		Name: "listener",
		Check: func(context.Context) error {
			if !ready() {
				return errors.New("not accepting connections")
			}
			return nil
		},
	}
}

// TokenSource yields a bearer token, refreshing it when needed.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// TokenCheck passes when src produces a token that has not expired.
func TokenCheck(src TokenSource) Checker {
	return Checker{
		Name: "token",
		Check: func(ctx context.Context) error {
			tok, err := src.Token(ctx)
			switch {
			case err != nil:
				return err
			case !tok.Valid():
				return errors.New("token expired")
			}
			return nil
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
