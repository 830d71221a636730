package httpapi

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/keyauth"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"deadline-tracker/internal/repository"
	"deadline-tracker/internal/service"
)

const localUserID = "user_id"

// Sessions maps bearer tokens to user ids. Tokens live until logout or
// restart.
type Sessions struct {
	mu     sync.RWMutex
	tokens map[string]uint
}

func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[string]uint)}
}

// Issue creates a new token for the user.
func (s *Sessions) Issue(userID uint) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return token
}

func (s *Sessions) Lookup(token string) (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	return id, ok
}

func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// RequireAuth checks the bearer token and stores the user id in the
// request locals.
func RequireAuth(sessions *Sessions) fiber.Handler {
	return keyauth.New(keyauth.Config{
		Realm: "deadline-tracker",
		Validator: func(c fiber.Ctx, key string) (bool, error) {
			userID, ok := sessions.Lookup(key)
			if !ok {
				return false, keyauth.ErrMissingOrMalformedAPIKey
			}
			c.Locals(localUserID, userID)
			return true, nil
		},
		ErrorHandler: func(c fiber.Ctx, _ error) error {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
		},
	})
}

// AuthHandler issues and revokes bearer tokens.
type AuthHandler struct {
	users      *repository.UserRepository
	workspaces *service.WorkspaceService
	sessions   *Sessions
	log        *zap.Logger
}

func NewAuthHandler(users *repository.UserRepository, workspaces *service.WorkspaceService, sessions *Sessions, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, workspaces: workspaces, sessions: sessions, log: log}
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Login accepts any non-empty email and password. The email picks the
// workspace; a first login gets the demo data when seeding is on.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := strings.TrimSpace(body.Email)
	if email == "" || strings.TrimSpace(body.Password) == "" {
		return jsonError(c, fiber.StatusBadRequest, "email and password are required")
	}

	user, err := h.users.UpsertByEmail(c.Context(), email, strings.TrimSpace(body.Name))
	if err != nil {
		h.log.Error("login upsert", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to sign in")
	}
	ws, err := h.workspaces.Workspace(c.Context(), *user)
	if err != nil {
		h.log.Error("login workspace", zap.Uint("user_id", user.ID), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to load workspace")
	}

	var resp loginResponse
	resp.Token = h.sessions.Issue(user.ID)
	resp.User.ID = user.ID
	if user.Email != nil {
		resp.User.Email = *user.Email
	}
	resp.User.Name = ws.User().DisplayName()

	h.log.Info("user signed in", zap.Uint("user_id", user.ID))
	return jsonSuccess(c, resp)
}

func (h *AuthHandler) Logout(c fiber.Ctx) error {
	h.sessions.Revoke(keyauth.TokenFromContext(c))
	return jsonSuccess(c, fiber.Map{"signed_out": true})
}
