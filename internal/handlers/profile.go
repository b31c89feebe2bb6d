package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

/*
GET /api/users/profile/        - view own profile (with tasks_count)
PUT/PATCH /api/users/profile/  - update email / first_name / last_name
*/
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r, userID)
	case http.MethodPut, http.MethodPatch:
		h.updateProfile(w, r, userID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Me serves GET /api/users/me/ with the same payload as the profile view.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.getProfile(w, r, userID)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	tasksCount, err := h.TaskRepo.CountByOwner(ctx, userID)
	if err != nil {
		log.Printf("count tasks for %s: %v", userID, err)
		sendError(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newUserProfile(user, tasksCount), http.StatusOK)
}

// updateProfile changes the mutable profile fields. id, username and
// date_joined stay as registered no matter what the client submits.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	errs := fieldErrors{}
	if input.Email != nil {
		validateEmailField(*input.Email, errs)
		if len(errs) == 0 {
			taken, err := h.UserRepo.EmailExists(ctx, *input.Email, userID)
			if err != nil {
				log.Printf("check email %s: %v", *input.Email, err)
				sendError(w, "Failed to update profile", http.StatusInternalServerError)
				return
			}
			if taken {
				errs.add("email", "This email is already in use.")
			}
		}
		user.Email = *input.Email
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	if err := h.UserRepo.UpdateProfile(ctx, user); err != nil {
		log.Printf("update profile %s: %v", userID, err)
		sendError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	tasksCount, err := h.TaskRepo.CountByOwner(ctx, userID)
	if err != nil {
		log.Printf("count tasks for %s: %v", userID, err)
		sendError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newUserProfile(user, tasksCount), http.StatusOK)
}

/*
PUT /api/users/change-password/
The current password must verify; the new password must be confirmed and
satisfy the strength policy.
*/
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		sendError(w, "Use PUT method", http.StatusMethodNotAllowed)
		return
	}

	var input struct {
		OldPassword  string `json:"old_password"`
		NewPassword  string `json:"new_password"`
		NewPassword2 string `json:"new_password2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	errs := fieldErrors{}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
		errs.add("old_password", "Current password is incorrect.")
	}
	if err := validatePassword(input.NewPassword); err != nil {
		errs.add("new_password", err.Error())
	}
	if input.NewPassword != input.NewPassword2 {
		errs.add("new_password", "Passwords do not match.")
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		sendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}
	if err := h.UserRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		log.Printf("update password %s: %v", userID, err)
		sendError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	log.Printf("Password changed for user: %s", user.Email)
	sendJSON(w, map[string]string{"message": "Password updated successfully."}, http.StatusOK)
}
