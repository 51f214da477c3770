// Package directory is the narrow contract to the platform's user and job
// storage. Profile data lives outside this subsystem; we only ever read
// display fields from it.
package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/worklink/messaging/pkg/apperrors"
)

type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

type Job struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
}

// StaticDirectory is an in-memory Directory for tests and local dev.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
	jobs  map[uuid.UUID]Job
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users: make(map[uuid.UUID]User),
		jobs:  make(map[uuid.UUID]Job),
	}
}

func (d *StaticDirectory) PutUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *StaticDirectory) PutJob(j Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[j.ID] = j
}

func (d *StaticDirectory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return &u, nil
}

func (d *StaticDirectory) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	j, ok := d.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job not found")
	}
	return &j, nil
}
