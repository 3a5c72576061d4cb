package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/securechat/securechat/internal/models"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

func (s *Server) issueSession(w http.ResponseWriter, user *models.User) {
	token, err := s.accounts.StartSession(user)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user.Summary()})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.issueSession(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.issueSession(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		s.accounts.EndSession(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	unread, err := s.messages.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user.Summary(),
		"unread_count": unread,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.Directory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": summaries})
}

type sendMessageRequest struct {
	RecipientEmail string `json:"recipient_email"`
	Content        string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user := userFromContext(r.Context())
	msg, err := s.messages.Send(r.Context(), user, req.RecipientEmail, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      msg.ID,
		"sent_at": msg.SentAt,
	})
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	views, err := s.messages.Inbox(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": views})
}

func (s *Server) handleSent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	views, err := s.messages.Sent(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": views})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	count, err := s.messages.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func messageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, &models.RequestError{
			Code:       models.ErrCodeValidation,
			Message:    "invalid message id",
			StatusCode: http.StatusBadRequest,
		}
	}
	return id, nil
}

func (s *Server) handleOpenMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user := userFromContext(r.Context())
	view, err := s.messages.Open(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	// A decrypt failure is part of the view, not an HTTP error.
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": view})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user := userFromContext(r.Context())
	if err := s.messages.MarkRead(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleVerificationRequest(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.verify.Request(r.Context(), user.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "code sent"})
}

type verificationConfirmRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerificationConfirm(w http.ResponseWriter, r *http.Request) {
	var req verificationConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user := userFromContext(r.Context())
	if err := s.verify.Confirm(r.Context(), user.Email, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	s.hub.register(user.ID, conn)
	s.logger.WithField("user_id", user.ID).Debug("WebSocket connected")

	defer func() {
		s.hub.unregister(user.ID, conn)
		_ = conn.Close()
	}()

	// Drain the connection; clients only receive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
