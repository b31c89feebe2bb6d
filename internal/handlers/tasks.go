package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tareas/internal/db"
	"tareas/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

/*
handles everything under /api/tasks/:
- GET  /api/tasks/                 - list (filter/search/order/paginate)
- POST /api/tasks/                 - create
- GET  /api/tasks/pending/         - pending tasks, unpaginated
- GET  /api/tasks/completed/       - completed tasks, unpaginated
- GET  /api/tasks/stats/           - aggregate counters
- GET/PUT/PATCH/DELETE /api/tasks/{id}/
- POST /api/tasks/{id}/complete/
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks"), "/")
	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.listTasks(w, r, userID)
		case http.MethodPost:
			h.createTask(w, r, userID)
		default:
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "pending":
		h.listByStatus(w, r, userID, models.StatusPending)
	case "completed":
		h.listByStatus(w, r, userID, models.StatusCompleted)
	case "stats":
		h.taskStats(w, r, userID)
	default:
		parts := strings.Split(rest, "/")
		taskID, err := uuid.Parse(parts[0])
		if err != nil {
			sendError(w, "Task not found", http.StatusNotFound)
			return
		}
		switch {
		case len(parts) == 1:
			h.handleTaskByID(w, r, userID, taskID)
		case len(parts) == 2 && parts[1] == "complete":
			h.completeTask(w, r, userID, taskID)
		default:
			sendError(w, "Not found", http.StatusNotFound)
		}
	}
}

func (h *Handler) handleTaskByID(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) {
	switch r.Method {
	case http.MethodGet:
		h.getTask(w, r, userID, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTask(w, r, userID, taskID)
	case http.MethodDelete:
		h.deleteTask(w, r, userID, taskID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	query := r.URL.Query()

	filter := db.TaskFilter{
		Status:   models.TaskStatus(query.Get("status")),
		Priority: models.TaskPriority(query.Get("priority")),
		Search:   query.Get("search"),
		Ordering: query.Get("ordering"),
	}

	errs := fieldErrors{}
	if filter.Status != "" && !filter.Status.Valid() {
		errs.add("status", "Select a valid choice.")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		errs.add("priority", "Select a valid choice.")
	}
	if !filter.ValidOrdering() {
		errs.add("ordering", "Select a valid ordering field.")
	}
	page, err := positiveIntParam(query.Get("page"), 1)
	if err != nil {
		errs.add("page", "Invalid page number.")
	}
	pageSize, err := positiveIntParam(query.Get("page_size"), defaultPageSize)
	if err != nil {
		errs.add("page_size", "Invalid page size.")
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	count, err := h.TaskRepo.Count(ctx, userID, filter)
	if err != nil {
		log.Printf("count tasks for %s: %v", userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	tasks, err := h.TaskRepo.List(ctx, userID, filter)
	if err != nil {
		log.Printf("list tasks for %s: %v", userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}

	resp := newPaginatedResponse(count, page, pageSize, newTaskList(tasks, owner.Username))
	sendJSON(w, resp, http.StatusOK)
}

type taskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	DueDate     *time.Time      `json:"due_date"`
	User        json.RawMessage `json:"user"` // ignored: owner is always the caller
	UserID      json.RawMessage `json:"user_id"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var input taskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	errs := fieldErrors{}
	title := strings.TrimSpace(input.Title)
	validateTitle(title, errs)

	status := models.StatusPending
	if input.Status != "" {
		status = models.TaskStatus(input.Status)
		if !status.Valid() {
			errs.add("status", "Select a valid choice.")
		}
	}
	priority := models.PriorityMedium
	if input.Priority != "" {
		priority = models.TaskPriority(input.Priority)
		if !priority.Valid() {
			errs.add("priority", "Select a valid choice.")
		}
	}
	validateDueDate(input.DueDate, now, errs)
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	task := &models.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	if err := h.TaskRepo.Create(ctx, task); err != nil {
		log.Printf("create task for %s: %v", userID, err)
		sendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/api/tasks/"+task.ID.String()+"/")
	sendJSON(w, newTaskDetail(task, owner), http.StatusCreated)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		h.taskError(w, err, userID, taskID, "get")
		return
	}
	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to get task", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newTaskDetail(task, owner), http.StatusOK)
}

// updateTask applies a full or partial update; PUT and PATCH behave the
// same. id, created_at, updated_at and owner are never client-settable.
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		h.taskError(w, err, userID, taskID, "update")
		return
	}

	var input struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Status      *string         `json:"status"`
		Priority    *string         `json:"priority"`
		DueDate     json.RawMessage `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	errs := fieldErrors{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		validateTitle(title, errs)
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		if !status.Valid() {
			errs.add("status", "Select a valid choice.")
		}
		task.Status = status
	}
	if input.Priority != nil {
		priority := models.TaskPriority(*input.Priority)
		if !priority.Valid() {
			errs.add("priority", "Select a valid choice.")
		}
		task.Priority = priority
	}
	if len(input.DueDate) > 0 {
		if string(input.DueDate) == "null" {
			task.DueDate = nil
		} else {
			var due time.Time
			if err := json.Unmarshal(input.DueDate, &due); err != nil {
				errs.add("due_date", "Enter a valid date/time.")
			} else {
				validateDueDate(&due, now, errs)
				task.DueDate = &due
			}
		}
	}
	if len(errs) > 0 {
		sendFieldErrors(w, errs)
		return
	}

	task.UpdatedAt = now
	if err := h.TaskRepo.Update(ctx, task); err != nil {
		h.taskError(w, err, userID, taskID, "update")
		return
	}
	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newTaskDetail(task, owner), http.StatusOK)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.TaskRepo.Delete(ctx, taskID, userID); err != nil {
		h.taskError(w, err, userID, taskID, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// taskError maps missing-or-foreign rows to 404 and everything else to 500.
func (h *Handler) taskError(w http.ResponseWriter, err error, userID, taskID uuid.UUID, op string) {
	if errors.Is(err, sql.ErrNoRows) {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}
	log.Printf("%s task %s for %s: %v", op, taskID, userID, err)
	sendError(w, "Failed to "+op+" task", http.StatusInternalServerError)
}

func validateTitle(title string, errs fieldErrors) {
	if title == "" {
		errs.add("title", "This field is required.")
	}
	// character count, not bytes: the column is VARCHAR(200)
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		errs.add("title", "Title must be at most 200 characters.")
	}
}

// validateDueDate rejects due dates that are not strictly in the future at
// validation time.
func validateDueDate(due *time.Time, now time.Time, errs fieldErrors) {
	if due != nil && !due.After(now) {
		errs.add("due_date", "Due date cannot be in the past.")
	}
}

func positiveIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errors.New("invalid positive integer")
	}
	return value, nil
}
