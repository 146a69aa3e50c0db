package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jfrlite/jfrlite/internal/auth"
)

var validate = validator.New()

// LoginHandler issues bearer tokens when the JWT auth manager is active.
type LoginHandler struct {
	manager *auth.JWTManager
}

func NewLoginHandler(manager *auth.JWTManager) *LoginHandler {
	return &LoginHandler{manager: manager}
}

type loginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *LoginHandler) APIVersion() string { return "v1" }
func (h *LoginHandler) Method() string     { return http.MethodPost }
func (h *LoginHandler) Path() string       { return "/auth/login" }
func (h *LoginHandler) RequiresAuth() bool { return false }
func (h *LoginHandler) IsAsync() bool      { return true }
func (h *LoginHandler) IsOrdered() bool    { return false }

// Handle handles POST /api/v1/auth/login
func (h *LoginHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	input, err := decodeJSON[loginInput](r)
	if err != nil {
		return err
	}
	if err := validate.Struct(input); err != nil {
		return &HTTPError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Username and password are required"}
	}

	response, err := h.manager.Login(input.Username, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return &HTTPError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Invalid credentials"}
	}
	if err != nil {
		return err
	}

	sendJSON(w, http.StatusOK, response)
	return nil
}
