package http

import (
	"net/http"

	applog "expensetracker/internal/log"
)

type userResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	username, email := p.Get("username"), p.Get("email")
	if err := s.users.Register(r.Context(), username, p.Get("password"), email); err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}
	Created(userResponse{Username: username, Email: email}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	u, err := s.users.Authenticate(r.Context(), p.Get("username"), p.Get("password"))
	if err != nil {
		writeError(w, r, applog.OpLogin, err)
		return
	}
	OK(userResponse{Username: u.Username, Email: u.Email}).Write(w)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.Backup(r.Context())
	if err != nil {
		writeError(w, r, applog.OpBackup, err)
		return
	}
	Created(map[string]string{"path": path}).Write(w)
}
