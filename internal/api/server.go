package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"

	"flowcore/internal/codec"
	"flowcore/internal/domain"
	"flowcore/internal/store"
)

const maxBody = 1 << 20

// Registrar stores a schedule and reports its first next run.
type Registrar interface {
	Register(ctx context.Context, s domain.Schedule) (mo.Option[time.Time], error)
}

type Server struct {
	r     *chi.Mux
	repo  store.Repository
	sched Registrar
}

func NewServer(repo store.Repository, sched Registrar) http.Handler {
	return NewServerWithDebug(repo, sched, false)
}

func NewServerWithDebug(repo store.Repository, sched Registrar, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, repo: repo, sched: sched}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)

	r.Get("/api/workflows", s.listWorkflows)
	r.Put("/api/workflows/{id}", s.putWorkflow)
	r.Get("/api/workflows/{id}", s.getWorkflow)
	r.Delete("/api/workflows/{id}", s.deleteWorkflow)
	r.Get("/api/workflows/{id}/tasks", s.workflowTasks)

	r.Post("/api/tasks", s.postTasks)
	r.Put("/api/tasks/{id}", s.putTask)
	r.Get("/api/tasks/{id}", s.getTask)

	r.Get("/api/schedules", s.listSchedules)
	r.Put("/api/schedules/{id}", s.putSchedule)
	r.Get("/api/schedules/{id}", s.getSchedule)
	r.Delete("/api/schedules/{id}", s.deleteSchedule)
	r.Get("/api/schedules/{id}/next", s.scheduleNext)

	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	st, err := s.repo.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "flowcore_up 1\n")
	fmt.Fprintf(w, "flowcore_workflows %d\n", st.Workflows)
	fmt.Fprintf(w, "flowcore_tasks %d\n", st.Tasks)
	fmt.Fprintf(w, "flowcore_schedules{state=\"enabled\"} %d\n", st.SchedulesEnabled)
	fmt.Fprintf(w, "flowcore_schedules{state=\"disabled\"} %d\n", st.SchedulesDisabled)
}

func (s *Server) putWorkflow(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	wf, err := codec.DecodeWorkflow(body)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if !matchesPath(w, r, wf.ID().String()) {
		return
	}
	if err := s.repo.PutWorkflow(r.Context(), wf); err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeWorkflow(wf))
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.repo.GetWorkflow(r.Context(), domain.WorkflowID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeWorkflow(wf))
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.repo.ListWorkflows(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	docs := make([]json.RawMessage, 0, len(workflows))
	for _, wf := range workflows {
		docs = append(docs, codec.EncodeWorkflow(wf))
	}
	writeJSON(w, 200, map[string]any{"workflows": docs})
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteWorkflow(r.Context(), domain.WorkflowID(chi.URLParam(r, "id"))); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) workflowTasks(w http.ResponseWriter, r *http.Request) {
	wf, err := s.repo.GetWorkflow(r.Context(), domain.WorkflowID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, err)
		return
	}
	tasks, err := s.repo.GetTasks(r.Context(), wf.Tasks().IDs())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeTasks(tasks))
}

func (s *Server) postTasks(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	tasks, err := codec.DecodeTasks(body)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.repo.PutTasks(r.Context(), tasks...); err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, http.StatusCreated, codec.EncodeTasks(tasks))
}

func (s *Server) putTask(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	t, err := codec.DecodeTask(body)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if !matchesPath(w, r, t.ID().String()) {
		return
	}
	if err := s.repo.PutTasks(r.Context(), t); err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeTask(t))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.GetTask(r.Context(), domain.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeTask(t))
}

func (s *Server) putSchedule(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	sch, err := codec.DecodeSchedule(body)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if !matchesPath(w, r, sch.ID().String()) {
		return
	}
	next, err := s.sched.Register(r.Context(), sch)
	if err != nil {
		s.fail(w, err)
		return
	}
	ev := log.Info().Str("schedule_id", sch.ID().String()).Str("workflow_id", sch.WorkflowID().String())
	if at, ok := next.Get(); ok {
		ev = ev.Time("next_run", at)
	}
	ev.Msg("schedule registered")
	writeDoc(w, 200, codec.EncodeSchedule(sch))
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sch, err := s.repo.GetSchedule(r.Context(), domain.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeDoc(w, 200, codec.EncodeSchedule(sch))
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.repo.ListSchedules(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	docs := make([]json.RawMessage, 0, len(schedules))
	for _, sch := range schedules {
		docs = append(docs, codec.EncodeSchedule(sch))
	}
	writeJSON(w, 200, map[string]any{"schedules": docs})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteSchedule(r.Context(), domain.ScheduleID(chi.URLParam(r, "id"))); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type nextResp struct {
	Next *string `json:"next"`
}

func (s *Server) scheduleNext(w http.ResponseWriter, r *http.Request) {
	next, err := s.repo.NextRun(r.Context(), domain.ScheduleID(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, err)
		return
	}
	var resp nextResp
	if at, ok := next.Get(); ok {
		ts := codec.FormatTimestamp(at)
		resp.Next = &ts
	}
	writeJSON(w, 200, resp)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), 404)
		return
	}
	log.Error().Err(err).Msg("request failed")
	http.Error(w, err.Error(), 500)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), 400)
		return nil, false
	}
	return body, true
}

func matchesPath(w http.ResponseWriter, r *http.Request, id string) bool {
	if p := chi.URLParam(r, "id"); p != id {
		http.Error(w, fmt.Sprintf("path id %q does not match document id %q", p, id), 400)
		return false
	}
	return true
}

func writeDoc(w http.ResponseWriter, code int, doc []byte) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(doc)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
