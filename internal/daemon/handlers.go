package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/codedojo/internal/auth"
	"github.com/felixgeelhaar/codedojo/internal/domain"
	"github.com/felixgeelhaar/codedojo/internal/hint"
	"github.com/felixgeelhaar/codedojo/internal/problem"
)

// Messages shown to users.
const (
	ProblemNotFoundMessage = "Problem not found"
	HintOfflineMessage     = "AI Assistant is currently offline."
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// Problems

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.problems.List(r.Context(), problem.Filter{
		Topic: q.Get("topic"),
		Query: q.Get("q"),
	})
	if err != nil {
		s.logger.Error("list problems", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load problems", nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.problems.Topics(r.Context())
	if err != nil {
		s.logger.Error("list topics", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load topics", nil)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	p, err := s.problems.Get(r.Context(), r.PathValue("slug"))
	if errors.Is(err, domain.ErrProblemNotFound) {
		writeError(w, http.StatusNotFound, ProblemNotFoundMessage, nil)
		return
	}
	if err != nil {
		s.logger.Error("get problem", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load problem details", nil)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Execution and hints

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecutionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := uuid.Nil
	if u := GetUser(r.Context()); u != nil {
		userID = u.ID
	}

	result, err := s.runner.Execute(r.Context(), userID, req)
	if err != nil {
		var se *domain.ServiceError
		switch {
		case errors.Is(err, domain.ErrUnsupportedLanguage):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported language: %s", req.Language), nil)
		case errors.As(err, &se):
			writeError(w, se.Status, se.Message, nil)
		case r.Context().Err() != nil:
			// client went away
		default:
			s.logger.Error("execute", "correlation_id", GetCorrelationID(r.Context()), "error", err)
			writeError(w, http.StatusBadGateway, "execution failed", nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	var req domain.HintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.hints == nil {
		writeError(w, http.StatusServiceUnavailable, HintOfflineMessage, nil)
		return
	}

	h, err := s.hints.Hint(r.Context(), req)
	if errors.Is(err, hint.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		s.logger.Warn("hint failed", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, HintOfflineMessage, nil)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// Accounts

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RankScore int       `json:"rankScore"`
	CreatedAt time.Time `json:"createdAt"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		RankScore: u.RankScore,
		CreatedAt: u.CreatedAt,
	}
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (s *Server) requireAuthService(w http.ResponseWriter) bool {
	if s.auth == nil {
		writeError(w, http.StatusNotImplemented, "accounts are not enabled on this server", nil)
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthService(w) {
		return
	}
	var req auth.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"user": userResponse(user)})
	case errors.Is(err, domain.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "username or email already registered", nil)
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		s.logger.Error("register", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed", nil)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthService(w) {
		return
	}
	var req auth.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", nil)
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password", nil)
		return
	}
	if err != nil {
		s.logger.Error("login", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    result.Session.Token,
		Path:     "/",
		MaxAge:   s.cookieMaxAge,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResult{
		User:      userResponse(result.User),
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuthService(w) {
		return
	}
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "not logged in", nil)
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil && !errors.Is(err, domain.ErrAuthSessionNotFound) {
		s.logger.Warn("logout", "correlation_id", GetCorrelationID(r.Context()), "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userResponse(user)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated", nil)
		return
	}
	profile, err := s.auth.Profile(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("profile", "correlation_id", GetCorrelationID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile", nil)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
