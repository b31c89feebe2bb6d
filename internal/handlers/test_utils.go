package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"tareas/internal/db"
	"tareas/internal/models"
)

// setupHTTP wires real repositories over an in-memory SQLite database and
// the full route table, exactly as main wires them.
func setupHTTP(t *testing.T) (*Handler, *http.ServeMux, *sql.DB, string) {
	t.Helper()

	secret := strings.Repeat("a", 32)
	_ = os.Setenv("JWT_SECRET", secret)

	dbx, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbx.SetMaxOpenConns(1)

	ddl := `
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  date_joined TIMESTAMP NOT NULL
);
CREATE TABLE tasks (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  priority TEXT NOT NULL DEFAULT 'medium',
  due_date TIMESTAMP,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
);
`
	if _, err := dbx.Exec(ddl); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	h := &Handler{
		UserRepo:    db.NewUserRepository(dbx),
		TaskRepo:    db.NewTaskRepository(dbx),
		RateLimiter: NewRateLimiter(100, time.Minute),
	}
	t.Cleanup(h.RateLimiter.Stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/register/", h.Register)
	mux.HandleFunc("/api/users/login/", h.Login)
	mux.HandleFunc("/api/users/profile/", h.AuthMiddleware(h.HandleProfile))
	mux.HandleFunc("/api/users/change-password/", h.AuthMiddleware(h.ChangePassword))
	mux.HandleFunc("/api/users/me/", h.AuthMiddleware(h.Me))
	mux.HandleFunc("/api/tasks/", h.AuthMiddleware(h.HandleTasks))

	return h, mux, dbx, secret
}

// createTestUser inserts an account directly through the repository with a
// known password, bypassing the register endpoint.
func createTestUser(t *testing.T, h *Handler, username, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FirstName:    "Ana",
		LastName:     "Gomez",
		PasswordHash: string(hash),
		DateJoined:   time.Now().UTC(),
	}
	if err := h.UserRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func bearerForUser(t *testing.T, secret string, userID uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + signed
}
