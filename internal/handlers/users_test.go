package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRegister_Success(t *testing.T) {
	_, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	body := `{"username":"ana","email":"ana@example.com","first_name":"Ana",
	 "last_name":"Gomez","password":"Passw0rdA","password2":"Passw0rdA"}`
	rec := doRequest(t, mux, http.MethodPost, "/api/users/register/", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}

	var profile struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		Email      string `json:"email"`
		TasksCount int    `json:"tasks_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Username != "ana" || profile.Email != "ana@example.com" || profile.TasksCount != 0 {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if profile.ID == "" {
		t.Error("expected an id")
	}
}

func TestRegister_Validation(t *testing.T) {
	_, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			"password mismatch",
			`{"username":"ana","email":"ana@example.com","first_name":"A","last_name":"G",
			 "password":"Passw0rdA","password2":"Different1"}`,
			"password",
		},
		{
			"weak password",
			`{"username":"ana","email":"ana@example.com","first_name":"A","last_name":"G",
			 "password":"short","password2":"short"}`,
			"password",
		},
		{
			"no digit",
			`{"username":"ana","email":"ana@example.com","first_name":"A","last_name":"G",
			 "password":"Password","password2":"Password"}`,
			"password",
		},
		{
			"bad email",
			`{"username":"ana","email":"not-an-email","first_name":"A","last_name":"G",
			 "password":"Passw0rdA","password2":"Passw0rdA"}`,
			"email",
		},
		{
			"missing names",
			`{"username":"ana","email":"ana@example.com",
			 "password":"Passw0rdA","password2":"Passw0rdA"}`,
			"first_name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, mux, http.MethodPost, "/api/users/register/", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			var errs map[string][]string
			if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
				t.Fatalf("decode errors: %v", err)
			}
			if len(errs[tt.field]) == 0 {
				t.Errorf("expected error keyed to %q, got %v", tt.field, errs)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")

	body := `{"username":"otra","email":"ana@example.com","first_name":"A","last_name":"G",
	 "password":"Passw0rdA","password2":"Passw0rdA"}`
	rec := doRequest(t, mux, http.MethodPost, "/api/users/register/", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	var errs map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(errs["email"]) == 0 {
		t.Errorf("expected error keyed to email, got %v", errs)
	}
}

func TestLogin_SuccessAndFailure(t *testing.T) {
	h, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")

	rec := doRequest(t, mux, http.MethodPost, "/api/users/login/", "",
		`{"email":"ana@example.com","password":"Passw0rdA"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	// the issued token must open protected endpoints
	rec = doRequest(t, mux, http.MethodGet, "/api/users/me/", "Bearer "+resp.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET me with fresh token: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, mux, http.MethodPost, "/api/users/login/", "",
		`{"email":"ana@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: want 401, got %d", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/api/users/login/", "",
		`{"email":"nobody@example.com","password":"Passw0rdA"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: want 401, got %d", rec.Code)
	}
}

func TestProfile_GetWithTasksCount(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	user := createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")
	authz := bearerForUser(t, secret, user.ID)

	createTaskHTTP(t, mux, authz, `{"title":"uno"}`)
	createTaskHTTP(t, mux, authz, `{"title":"dos"}`)

	rec := doRequest(t, mux, http.MethodGet, "/api/users/profile/", authz, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET profile status=%d body=%s", rec.Code, rec.Body.String())
	}
	var profile struct {
		Username   string `json:"username"`
		TasksCount int    `json:"tasks_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Username != "ana" || profile.TasksCount != 2 {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestProfile_Update_UsernameReadOnly(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	user := createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")
	authz := bearerForUser(t, secret, user.ID)

	rec := doRequest(t, mux, http.MethodPatch, "/api/users/profile/", authz,
		`{"username":"hacker","first_name":"Anita"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH profile status=%d body=%s", rec.Code, rec.Body.String())
	}
	var profile struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Username != "ana" {
		t.Errorf("username must be read-only, got %q", profile.Username)
	}
	if profile.FirstName != "Anita" {
		t.Errorf("first_name not updated: %q", profile.FirstName)
	}
}

func TestProfile_Update_DuplicateEmail(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	createTestUser(t, h, "eva", "eva@example.com", "Passw0rdA")
	user := createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")
	authz := bearerForUser(t, secret, user.ID)

	rec := doRequest(t, mux, http.MethodPatch, "/api/users/profile/", authz,
		`{"email":"eva@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body.String())
	}

	// keeping your own email is never a duplicate
	rec = doRequest(t, mux, http.MethodPatch, "/api/users/profile/", authz,
		`{"email":"ana@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("own email rejected: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	user := createTestUser(t, h, "ana", "ana@example.com", "Passw0rdA")
	authz := bearerForUser(t, secret, user.ID)

	// wrong current password
	rec := doRequest(t, mux, http.MethodPut, "/api/users/change-password/", authz,
		`{"old_password":"wrong","new_password":"NuevaClave1","new_password2":"NuevaClave1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong old password: want 400, got %d", rec.Code)
	}
	var errs map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if len(errs["old_password"]) == 0 {
		t.Errorf("expected error keyed to old_password, got %v", errs)
	}

	// mismatched confirmation
	rec = doRequest(t, mux, http.MethodPut, "/api/users/change-password/", authz,
		`{"old_password":"Passw0rdA","new_password":"NuevaClave1","new_password2":"Otra1Clave"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatch: want 400, got %d", rec.Code)
	}

	// success
	rec = doRequest(t, mux, http.MethodPut, "/api/users/change-password/", authz,
		`{"old_password":"Passw0rdA","new_password":"NuevaClave1","new_password2":"NuevaClave1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status=%d body=%s", rec.Code, rec.Body.String())
	}

	// old password no longer works, new one does
	rec = doRequest(t, mux, http.MethodPost, "/api/users/login/", "",
		`{"email":"ana@example.com","password":"Passw0rdA"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password must stop working, got %d", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/api/users/login/", "",
		`{"email":"ana@example.com","password":"NuevaClave1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("new password must work, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUserEndpoints_Unauthorized(t *testing.T) {
	_, mux, dbx, _ := setupHTTP(t)
	defer dbx.Close()

	endpoints := []struct {
		method string
		url    string
	}{
		{http.MethodGet, "/api/users/profile/"},
		{http.MethodGet, "/api/users/me/"},
		{http.MethodPut, "/api/users/change-password/"},
	}
	for _, ep := range endpoints {
		rec := doRequest(t, mux, ep.method, ep.url, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: want 401, got %d", ep.method, ep.url, rec.Code)
		}
	}
}
