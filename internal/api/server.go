// Package api exposes the studio over HTTP: scenario authoring, code
// generation, test runs, bug reports and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/codegen"
	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/report"
	"github.com/AaronLay10/SentientStudio/internal/store"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

// Deps are the services the HTTP layer drives.
type Deps struct {
	Store    *store.Store
	Engine   *engine.Engine
	Scripts  *engine.ScriptEngine
	CodeGen  *codegen.Service
	TestRuns *testrun.Orchestrator
	Log      logrus.FieldLogger
}

// Server routes requests to the studio services.
type Server struct {
	store    *store.Store
	engine   *engine.Engine
	scripts  *engine.ScriptEngine
	codegen  *codegen.Service
	testruns *testrun.Orchestrator
	log      logrus.FieldLogger
	validate *validator.Validate
	mux      *http.ServeMux
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		store:    d.Store,
		engine:   d.Engine,
		scripts:  d.Scripts,
		codegen:  d.CodeGen,
		testruns: d.TestRuns,
		log:      log.WithField("component", "api"),
		validate: validator.New(),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 4 << 20

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	}
	s.mux.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "studio-api",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

// writeJSON writes v as the whole response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK writes the success envelope: {"success": true, "message": msg}
// plus the payload keys.
func writeOK(w http.ResponseWriter, status int, msg string, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeFailure maps err to a status code and writes the error envelope.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, report.ErrNoResult), errors.Is(err, report.ErrNoRuns):
		return http.StatusNotFound
	case errors.Is(err, testrun.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, testrun.ErrNotDeveloper), errors.Is(err, testrun.ErrInvalidBug),
		errors.Is(err, report.ErrUnsupportedFormat), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

// decode reads a JSON body into v and runs the struct validation tags.
// An empty body leaves v untouched when optional is set.
func (s *Server) decode(r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooBig.Limit)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// ListenAndServe serves the API on port until ctx is done, using TLS when
// it was configured with InitTLS.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg := LoadTLSConfig(s.log); tlsCfg != nil {
			srv.TLSConfig = tlsCfg
			s.log.WithField("addr", srv.Addr).Info("API listening (TLS)")
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.log.WithField("addr", srv.Addr).Info("API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
