package groupbackend

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
)

// Memory is an in-process Backend and Courses. It enforces the same
// uniqueness rules as the Mongo indexes: one name per course (folded) and
// one membership per user per course.
type Memory struct {
	mu       sync.RWMutex
	groups   map[string]*models.Group
	members  map[string][]models.GroupMembership // by group id
	courses  map[string]models.Course
	students map[string][]models.Student // by course id
	last     time.Time
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		groups:   make(map[string]*models.Group),
		members:  make(map[string][]models.GroupMembership),
		courses:  make(map[string]models.Course),
		students: make(map[string][]models.Student),
	}
}

// now returns a strictly increasing timestamp so creation and join order
// are stable even when calls land in the same clock tick.
func (m *Memory) now() time.Time {
	t := time.Now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *Memory) CreateGroup(_ context.Context, g models.Group) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.NameCI = text.Fold(g.Name)
	for _, other := range m.groups {
		if other.CourseID == g.CourseID && other.NameCI == g.NameCI {
			return models.Group{}, ErrDuplicateName
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if _, exists := m.groups[g.ID]; exists {
		return models.Group{}, ErrDuplicateName
	}
	if g.Status == "" {
		g.Status = models.GroupOpen
	}
	if g.MaxMembers <= 0 {
		g.MaxMembers = models.DefaultMaxMembers
	}
	now := m.now()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.MemberCount = 0
	m.groups[g.ID] = &g
	return g, nil
}

func (m *Memory) GetGroup(_ context.Context, groupID string) (models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	if !ok {
		return models.Group{}, ErrNotFound
	}
	return *g, nil
}

func (m *Memory) ListGroupsByCourse(_ context.Context, courseID string) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Group
	for _, g := range m.groups {
		if g.CourseID == courseID {
			out = append(out, *g)
		}
	}
	sortGroups(out)
	return out, nil
}

func (m *Memory) ListGroupsByMember(_ context.Context, userID string) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Group
	for groupID, list := range m.members {
		for _, ms := range list {
			if ms.UserID == userID {
				if g, ok := m.groups[groupID]; ok {
					out = append(out, *g)
				}
				break
			}
		}
	}
	sortGroups(out)
	return out, nil
}

func (m *Memory) UpdateGroup(_ context.Context, groupID string, u models.GroupUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		folded := text.Fold(*u.Name)
		for id, other := range m.groups {
			if id != groupID && other.CourseID == g.CourseID && other.NameCI == folded {
				return ErrDuplicateName
			}
		}
	} else {
		u.Name = nil
	}
	updated := u.Apply(*g)
	updated.NameCI = text.Fold(updated.Name)
	updated.UpdatedAt = m.now()
	*g = updated
	return nil
}

func (m *Memory) ListMembers(_ context.Context, groupID string) ([]models.GroupMembership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.groups[groupID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]models.GroupMembership, len(m.members[groupID]))
	copy(out, m.members[groupID])
	return out, nil
}

func (m *Memory) AddMember(_ context.Context, ms models.GroupMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[ms.GroupID]
	if !ok {
		return ErrNotFound
	}
	ms.CourseID = g.CourseID
	for groupID, list := range m.members {
		other, ok := m.groups[groupID]
		if !ok || other.CourseID != ms.CourseID {
			continue
		}
		for _, existing := range list {
			if existing.UserID == ms.UserID {
				return ErrDuplicateMember
			}
		}
	}
	if ms.ID == "" {
		ms.ID = uuid.NewString()
	}
	if ms.Role == "" {
		ms.Role = models.RoleMember
	}
	if ms.JoinedAt.IsZero() {
		ms.JoinedAt = m.now()
	}
	m.members[ms.GroupID] = append(m.members[ms.GroupID], ms)
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.members[groupID]
	for i, ms := range list {
		if ms.UserID == userID {
			m.members[groupID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SetMemberRole(_ context.Context, groupID, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.members[groupID]
	for i := range list {
		if list[i].UserID == userID {
			list[i].Role = role
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) Ping(context.Context) error { return nil }

// PutCourse adds or replaces a course.
func (m *Memory) PutCourse(c models.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
}

// PutStudent enrolls a student in a course.
func (m *Memory) PutStudent(s models.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.students[s.CourseID] {
		if existing.UserID == s.UserID {
			m.students[s.CourseID][i] = s
			return
		}
	}
	m.students[s.CourseID] = append(m.students[s.CourseID], s)
}

func (m *Memory) GetCourse(_ context.Context, courseID string) (models.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok {
		return models.Course{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListStudents(_ context.Context, courseID string) ([]models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Student, len(m.students[courseID]))
	copy(out, m.students[courseID])
	sortStudents(out)
	return out, nil
}

func (m *Memory) ListActiveCourses(context.Context) ([]models.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Course
	for _, c := range m.courses {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func sortGroups(gs []models.Group) {
	sort.Slice(gs, func(i, j int) bool {
		if !gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].CreatedAt.Before(gs[j].CreatedAt)
		}
		return gs[i].ID < gs[j].ID
	})
}

func sortStudents(ss []models.Student) {
	sort.Slice(ss, func(i, j int) bool { return ss[i].UserID < ss[j].UserID })
}
