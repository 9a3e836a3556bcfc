package domain

import "time"

type TaskID string

type TaskAction string

const (
	TaskAdded     TaskAction = "add"
	TaskCompleted TaskAction = "complete"
	TaskReopened  TaskAction = "reopen"
	TaskDeleted   TaskAction = "delete"
)

// Task is an item of the room's shared list.
type Task struct {
	ID        TaskID
	Text      string
	Completed bool
	CreatedBy string
	CreatedAt time.Time
}

const MaxTaskTextLen = 280
