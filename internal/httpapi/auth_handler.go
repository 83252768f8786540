package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_market/internal/auth"
	userdomain "github.com/fjod/go_market/internal/user/domain"
	userrepo "github.com/fjod/go_market/internal/user/repository"
	"github.com/google/uuid"
)

type AuthHandler struct {
	users  userrepo.UserRepository
	issuer *auth.TokenIssuer
}

func NewAuthHandler(users userrepo.UserRepository, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

type RegisterRequestDTO struct {
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Password        string              `json:"password"`
	UserType        userdomain.UserType `json:"user_type"`
	Phone           string              `json:"phone"`
	Location        string              `json:"location"`
	BusinessName    string              `json:"business_name"`
	BusinessAddress string              `json:"business_address"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponseDTO struct {
	Token string           `json:"token"`
	User  *userdomain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := userdomain.NewUser(uuid.New().String(), req.Name, req.Email, req.Password,
		req.UserType, req.Phone, req.Location, req.BusinessName, req.BusinessAddress)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_user", err.Error())
		return
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			respondError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	token, err := h.issuer.IssueToken(user.ID, user.UserType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponseDTO{Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, userrepo.ErrUserNotFound) {
		// Same response as a wrong password so emails cannot be probed.
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to log in")
		return
	}

	if !user.CheckPassword(req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	token, err := h.issuer.IssueToken(user.ID, user.UserType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, AuthResponseDTO{Token: token, User: user})
}
