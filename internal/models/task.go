package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Display labels for statuses and priorities. Every serialized shape reads
// from these two tables so the enum -> label mapping cannot drift.
var statusLabels = map[TaskStatus]string{
	StatusPending:    "Pendiente",
	StatusInProgress: "En progreso",
	StatusCompleted:  "Completada",
	StatusCancelled:  "Cancelada",
}

var priorityLabels = map[TaskPriority]string{
	PriorityLow:    "Baja",
	PriorityMedium: "Media",
	PriorityHigh:   "Alta",
}

func (s TaskStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s TaskStatus) Display() string {
	return statusLabels[s]
}

func (p TaskPriority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p TaskPriority) Display() string {
	return priorityLabels[p]
}

// MaxTitleLength caps task titles, matching the store's column size.
const MaxTitleLength = 200

type Task struct {
	ID          uuid.UUID
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      uuid.UUID
}
