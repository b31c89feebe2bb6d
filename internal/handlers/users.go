package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	netmail "net/mail"
	"os"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tareas/internal/models"
)

/*
POST /api/users/register/
Creates an account. The password must be confirmed and satisfy the
strength policy; duplicate emails and usernames are rejected.
*/
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}

	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP)
		sendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password"`
		Password2 string `json:"password2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	errs := fieldErrors{}
	if input.Username == "" {
		errs.add("username", "This field is required.")
	}
	if input.FirstName == "" {
		errs.add("first_name", "This field is required.")
	}
	if input.LastName == "" {
		errs.add("last_name", "This field is required.")
	}
	validateEmailField(input.Email, errs)
	if err := validatePassword(input.Password); err != nil {
		errs.add("password", err.Error())
	}
	if input.Password != input.Password2 {
		errs.add("password", "Passwords do not match.")
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taken, err := h.UserRepo.EmailExists(ctx, input.Email, uuid.Nil)
	if err != nil {
		log.Printf("check email %s: %v", input.Email, err)
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}
	if taken {
		errs.add("email", "This email is already in use.")
	}
	usernameTaken, err := h.UserRepo.UsernameExists(ctx, input.Username)
	if err != nil {
		log.Printf("check username %s: %v", input.Username, err)
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}
	if usernameTaken {
		errs.add("username", "This username is already taken.")
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		sendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
		DateJoined:   time.Now().UTC(),
	}
	if err := h.UserRepo.Create(ctx, user); err != nil {
		log.Printf("create user %s: %v", input.Email, err)
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s", user.Email)
	sendJSON(w, newUserProfile(user, 0), http.StatusCreated)
}

/*
POST /api/users/login/
Exchanges email + password for a signed bearer token.
*/
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}

	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		log.Printf("Rate limit exceeded for IP: %s", clientIP)
		sendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		log.Printf("login lookup for %s: %v", input.Email, err)
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		log.Printf("Invalid password for email: %s", input.Email)
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	tokenString, err := generateJWTToken(user.ID.String())
	if err != nil {
		log.Printf("Error generating token: %v", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	log.Printf("User logged in: %s", input.Email)
	sendJSON(w, map[string]any{
		"token":      tokenString,
		"user_id":    user.ID,
		"user_email": user.Email,
	}, http.StatusOK)
}

func generateJWTToken(sub string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	return tokenString, nil
}

func validateEmailField(email string, errs fieldErrors) {
	if email == "" {
		errs.add("email", "This field is required.")
		return
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		errs.add("email", "Enter a valid email address.")
	}
}

var (
	hasUppercase = regexp.MustCompile(`[A-Z]`)
	hasLowercase = regexp.MustCompile(`[a-z]`)
	hasDigit     = regexp.MustCompile(`\d`)
)

// validatePassword enforces the strength policy: at least 8 characters with
// an uppercase letter, a lowercase letter and a digit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if !hasUppercase.MatchString(password) {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLowercase.MatchString(password) {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasDigit.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	return nil
}
