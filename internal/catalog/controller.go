// Package catalog holds the view-model behind the course form and list.
//
// A Controller keeps the transient form state (the draft, edit mode and the
// last list snapshot) and turns user actions into store calls, refreshing the
// snapshot explicitly after every mutation.
package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/courseboard/internal/domain"
)

// Store is the persistence the controller depends on.
type Store interface {
	Add(ctx context.Context, course domain.Course) bool
	ListAll(ctx context.Context) ([]domain.Course, error)
	Update(ctx context.Context, course domain.Course) bool
	DeleteByID(ctx context.Context, id int64) bool
}

// DraftPolicy decides what happens to the draft when a submit does not take
// effect.
type DraftPolicy int

const (
	// KeepDraftOnFailure leaves the draft and edit mode untouched so the
	// user can retry.
	KeepDraftOnFailure DraftPolicy = iota
	// ClearDraftOnFailure always clears the draft, leaving edit mode as it
	// was.
	ClearDraftOnFailure
)

// Draft is the unsaved name/description pair bound to the form.
type Draft struct {
	Name        string
	Description string
}

// View is a point-in-time copy of the controller state for rendering.
type View struct {
	Draft        Draft
	Courses      []domain.Course
	Editing      bool
	EditTargetID int64
}

// Controller orchestrates store calls for the form and list.
type Controller struct {
	store    Store
	policy   DraftPolicy
	validate *validator.Validate
	log      *slog.Logger

	mu           sync.Mutex
	draft        Draft
	courses      []domain.Course
	editing      bool
	editTargetID int64
}

// NewController creates a controller backed by store.
func NewController(store Store, policy DraftPolicy, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    store,
		policy:   policy,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.With("component", "catalog"),
	}
}

// Load reads the initial snapshot from the store.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(ctx)
}

// SetDraft replaces the draft with the current form input.
func (c *Controller) SetDraft(name, description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = Draft{Name: name, Description: description}
}

// Submit adds the draft as a new course, or updates the course being edited.
// An empty name is ignored without touching the store. Submit reports whether
// the store call took effect.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submit(ctx)
}

// SubmitDraft sets the draft, submits it and returns the resulting state as
// one step, so concurrent form posts cannot submit each other's input.
func (c *Controller) SubmitDraft(ctx context.Context, name, description string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft = Draft{Name: name, Description: description}
	ok := c.submit(ctx)
	return c.view(), ok
}

// submit implements Submit. Callers must hold c.mu.
func (c *Controller) submit(ctx context.Context) bool {
	course := domain.Course{Name: c.draft.Name, Description: c.draft.Description}
	if err := c.validate.Struct(course); err != nil {
		c.log.Debug("submit ignored", "reason", err)
		return false
	}

	var ok bool
	if c.editing {
		course.ID = c.editTargetID
		ok = c.store.Update(ctx, course)
		if ok {
			c.editing = false
			c.editTargetID = 0
		}
	} else {
		ok = c.store.Add(ctx, course)
	}
	if !ok {
		c.log.Warn("submit did not take effect", "editing", c.editing, "id", course.ID)
	}

	c.refresh(ctx)
	if ok || c.policy == ClearDraftOnFailure {
		c.draft = Draft{}
	}
	return ok
}

// Edit loads course into the draft and switches to edit mode.
func (c *Controller) Edit(course domain.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft = Draft{Name: course.Name, Description: course.Description}
	c.editTargetID = course.ID
	c.editing = true
}

// Cancel leaves edit mode and clears the draft. The store is not touched.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.editing = false
	c.editTargetID = 0
	c.draft = Draft{}
}

// Delete removes the course with the given id. The snapshot is refreshed
// only when the delete took effect.
func (c *Controller) Delete(ctx context.Context, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.DeleteByID(ctx, id) {
		c.log.Warn("delete did not take effect", "id", id)
		return false
	}
	c.refresh(ctx)
	return true
}

// Course returns the course with the given id from the current snapshot.
func (c *Controller) Course(id int64) (domain.Course, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, course := range c.courses {
		if course.ID == id {
			return course, true
		}
	}
	return domain.Course{}, false
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// view copies the state. Callers must hold c.mu.
func (c *Controller) view() View {
	courses := make([]domain.Course, len(c.courses))
	copy(courses, c.courses)
	return View{
		Draft:        c.draft,
		Courses:      courses,
		Editing:      c.editing,
		EditTargetID: c.editTargetID,
	}
}

// refresh replaces the snapshot. On a read failure the stale snapshot is kept.
// Callers must hold c.mu.
func (c *Controller) refresh(ctx context.Context) {
	courses, err := c.store.ListAll(ctx)
	if err != nil {
		c.log.Error("failed to refresh courses", "error", err)
		return
	}
	c.courses = courses
}
