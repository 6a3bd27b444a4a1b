package httpapi

import (
	"net/http"

	"github.com/intrascribe/intrascribe/internal/task"
)

// taskForOwner loads a task and checks the caller owns its session. Tasks of
// foreign sessions read as absent, matching the session routes.
func (s *Server) taskForOwner(r *http.Request, owner string) (task.Task, error) {
	tk, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		return task.Task{}, err
	}
	if _, err := s.registry.SessionByID(r.Context(), tk.SessionID, owner); err != nil {
		return task.Task{}, err
	}
	return tk, nil
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, owner string) {
	tk, err := s.taskForOwner(r, owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tk)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request, owner string) {
	tk, err := s.taskForOwner(r, owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.tasks.Cancel(tk.ID); err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.log.Info("task cancelled", "task", tk.ID, "owner", owner)
	writeJSON(w, http.StatusOK, map[string]string{"task_id": tk.ID, "state": string(task.StateCancelled)})
}
