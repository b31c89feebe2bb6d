package handlers

import (
	"time"

	"tareas/internal/models"
)

// userPublic is the owner identity embedded in the task detail shape.
type userPublic struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func newUserPublic(user *models.User) userPublic {
	return userPublic{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// taskDetail is the full task shape with the embedded owner.
type taskDetail struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	User        userPublic `json:"user"`
}

func newTaskDetail(task *models.Task, owner *models.User) taskDetail {
	return taskDetail{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		User:        newUserPublic(owner),
	}
}

// taskListItem is the reduced shape for bulk listings: display labels come
// from the central lookup in models so the two shapes cannot drift.
type taskListItem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	StatusDisplay   string     `json:"status_display"`
	Priority        string     `json:"priority"`
	PriorityDisplay string     `json:"priority_display"`
	DueDate         *time.Time `json:"due_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UserUsername    string     `json:"user_username"`
}

func newTaskListItem(task *models.Task, username string) taskListItem {
	return taskListItem{
		ID:              task.ID.String(),
		Title:           task.Title,
		Status:          string(task.Status),
		StatusDisplay:   task.Status.Display(),
		Priority:        string(task.Priority),
		PriorityDisplay: task.Priority.Display(),
		DueDate:         task.DueDate,
		CreatedAt:       task.CreatedAt,
		UserUsername:    username,
	}
}

// newTaskList shapes an owner-scoped listing; every task belongs to the
// same caller, so one username covers them all.
func newTaskList(tasks []*models.Task, username string) []taskListItem {
	items := make([]taskListItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, newTaskListItem(task, username))
	}
	return items
}

// paginatedResponse is the envelope for the main list endpoint.
type paginatedResponse struct {
	Count    int            `json:"count"`
	Next     *int           `json:"next"`
	Previous *int           `json:"previous"`
	Results  []taskListItem `json:"results"`
}

func newPaginatedResponse(count, page, pageSize int, results []taskListItem) paginatedResponse {
	resp := paginatedResponse{Count: count, Results: results}
	if page*pageSize < count {
		next := page + 1
		resp.Next = &next
	}
	if page > 1 {
		previous := page - 1
		resp.Previous = &previous
	}
	return resp
}

// userProfile is the profile payload, including the owned-task count.
type userProfile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	DateJoined time.Time `json:"date_joined"`
	TasksCount int       `json:"tasks_count"`
}

func newUserProfile(user *models.User, tasksCount int) userProfile {
	return userProfile{
		ID:         user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		DateJoined: user.DateJoined,
		TasksCount: tasksCount,
	}
}
