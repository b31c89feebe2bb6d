package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tareas/internal/db"
	"tareas/internal/models"
)

// listByStatus serves GET /api/tasks/pending/ and /api/tasks/completed/.
// Both return the bare list-shape collection in default ordering, without
// the pagination envelope the main listing uses.
func (h *Handler) listByStatus(w http.ResponseWriter, r *http.Request, userID uuid.UUID, status models.TaskStatus) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	tasks, err := h.TaskRepo.List(ctx, userID, db.TaskFilter{Status: status})
	if err != nil {
		log.Printf("list %s tasks for %s: %v", status, userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newTaskList(tasks, owner.Username), http.StatusOK)
}

// completeTask serves POST /api/tasks/{id}/complete/. It forces the status
// to completed no matter what it was before, so calling it twice is safe.
func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request, userID, taskID uuid.UUID) {
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		h.taskError(w, err, userID, taskID, "complete")
		return
	}

	task.Status = models.StatusCompleted
	task.UpdatedAt = time.Now().UTC()
	if err := h.TaskRepo.Update(ctx, task); err != nil {
		h.taskError(w, err, userID, taskID, "complete")
		return
	}

	owner, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("lookup user %s: %v", userID, err)
		sendError(w, "Failed to complete task", http.StatusInternalServerError)
		return
	}
	sendJSON(w, newTaskDetail(task, owner), http.StatusOK)
}

// taskStats serves GET /api/tasks/stats/: total plus per-status and
// per-priority counters over the caller's whole task set.
func (h *Handler) taskStats(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.TaskRepo.Stats(ctx, userID)
	if err != nil {
		log.Printf("task stats for %s: %v", userID, err)
		sendError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	sendJSON(w, stats, http.StatusOK)
}
