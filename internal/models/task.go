package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In-Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// Statuses lists every accepted status in display order.
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next cycles through the statuses; used by form controls.
func (s TaskStatus) Next() TaskStatus {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusPending
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" gorm:"not null;default:'Pending'"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index;autoCreateTime:false"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

// ShortID is the last four characters of the id, as shown on task cards.
func (t Task) ShortID() string {
	s := t.ID.String()
	if len(s) < 4 {
		return s
	}
	return s[len(s)-4:]
}
