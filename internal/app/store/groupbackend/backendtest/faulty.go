// Package backendtest provides a fault-injecting group backend for tests
// of the engine and the services built on it.
package backendtest

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/domain/models"
)

// Backend operation names accepted by the Fail* methods.
const (
	OpCreateGroup        = "CreateGroup"
	OpGetGroup           = "GetGroup"
	OpListGroupsByCourse = "ListGroupsByCourse"
	OpListGroupsByMember = "ListGroupsByMember"
	OpUpdateGroup        = "UpdateGroup"
	OpListMembers        = "ListMembers"
	OpAddMember          = "AddMember"
	OpRemoveMember       = "RemoveMember"
	OpSetMemberRole      = "SetMemberRole"
	OpPing               = "Ping"
)

// ErrTimeout is the default injected failure. It is a transport error.
var ErrTimeout = &groupbackend.TransportError{Op: "injected", Err: errors.New("injected timeout")}

// Call describes one backend call as seen by a fault rule.
type Call struct {
	Op      string
	GroupID string
	UserID  string
	Role    string
	Update  models.GroupUpdate
}

type rule struct {
	op    string
	times int // remaining; <0 means forever
	err   error
	apply bool
	match func(Call) bool
}

// Faulty wraps a Memory backend and fails selected calls.
type Faulty struct {
	*groupbackend.Memory

	mu    sync.Mutex
	rules []*rule
	calls map[string]int
}

// New returns a Faulty around a fresh Memory backend.
func New() *Faulty {
	return Wrap(groupbackend.NewMemory())
}

// Wrap returns a Faulty around m.
func Wrap(m *groupbackend.Memory) *Faulty {
	return &Faulty{Memory: m, calls: map[string]int{}}
}

// FailNext makes the next n calls to op fail with err without touching
// the store. n < 0 fails every call. A nil err means ErrTimeout.
func (f *Faulty) FailNext(op string, n int, err error) {
	f.add(&rule{op: op, times: n, err: err})
}

// FailAfterApply makes the next n calls to op reach the store and then
// report err, as when a response is lost after the write committed.
func (f *Faulty) FailAfterApply(op string, n int, err error) {
	f.add(&rule{op: op, times: n, err: err, apply: true})
}

// FailWhen fails every call to op for which match returns true. When
// apply is set the call still reaches the store.
func (f *Faulty) FailWhen(op string, match func(Call) bool, err error, apply bool) {
	f.add(&rule{op: op, times: -1, err: err, apply: apply, match: match})
}

// Heal removes every fault rule.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
}

// Calls returns how many times op was invoked, faulted or not.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) add(r *rule) {
	if r.err == nil {
		r.err = ErrTimeout
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
}

// check counts the call and returns the fault to inject, if any.
func (f *Faulty) check(c Call) (apply bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.Op]++
	for _, r := range f.rules {
		if r.op != c.Op || r.times == 0 {
			continue
		}
		if r.match != nil && !r.match(c) {
			continue
		}
		if r.times > 0 {
			r.times--
		}
		return r.apply, r.err
	}
	return false, nil
}

// run applies the fault protocol around one store call.
func (f *Faulty) run(c Call, fn func() error) error {
	apply, ferr := f.check(c)
	if ferr == nil {
		return fn()
	}
	if apply {
		if err := fn(); err != nil {
			return err
		}
	}
	return ferr
}

func (f *Faulty) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	var out models.Group
	err := f.run(Call{Op: OpCreateGroup}, func() error {
		var err error
		out, err = f.Memory.CreateGroup(ctx, g)
		return err
	})
	if err != nil {
		return models.Group{}, err
	}
	return out, nil
}

func (f *Faulty) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var out models.Group
	err := f.run(Call{Op: OpGetGroup, GroupID: groupID}, func() error {
		var err error
		out, err = f.Memory.GetGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return models.Group{}, err
	}
	return out, nil
}

func (f *Faulty) ListGroupsByCourse(ctx context.Context, courseID string) ([]models.Group, error) {
	var out []models.Group
	err := f.run(Call{Op: OpListGroupsByCourse}, func() error {
		var err error
		out, err = f.Memory.ListGroupsByCourse(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Faulty) ListGroupsByMember(ctx context.Context, userID string) ([]models.Group, error) {
	var out []models.Group
	err := f.run(Call{Op: OpListGroupsByMember, UserID: userID}, func() error {
		var err error
		out, err = f.Memory.ListGroupsByMember(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Faulty) UpdateGroup(ctx context.Context, groupID string, u models.GroupUpdate) error {
	return f.run(Call{Op: OpUpdateGroup, GroupID: groupID, Update: u}, func() error {
		return f.Memory.UpdateGroup(ctx, groupID, u)
	})
}

func (f *Faulty) ListMembers(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	var out []models.GroupMembership
	err := f.run(Call{Op: OpListMembers, GroupID: groupID}, func() error {
		var err error
		out, err = f.Memory.ListMembers(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Faulty) AddMember(ctx context.Context, m models.GroupMembership) error {
	return f.run(Call{Op: OpAddMember, GroupID: m.GroupID, UserID: m.UserID, Role: m.Role}, func() error {
		return f.Memory.AddMember(ctx, m)
	})
}

func (f *Faulty) RemoveMember(ctx context.Context, groupID, userID string) error {
	return f.run(Call{Op: OpRemoveMember, GroupID: groupID, UserID: userID}, func() error {
		return f.Memory.RemoveMember(ctx, groupID, userID)
	})
}

func (f *Faulty) SetMemberRole(ctx context.Context, groupID, userID, role string) error {
	return f.run(Call{Op: OpSetMemberRole, GroupID: groupID, UserID: userID, Role: role}, func() error {
		return f.Memory.SetMemberRole(ctx, groupID, userID, role)
	})
}

func (f *Faulty) Ping(ctx context.Context) error {
	return f.run(Call{Op: OpPing}, func() error {
		return f.Memory.Ping(ctx)
	})
}

var _ groupbackend.Backend = (*Faulty)(nil)
var _ groupbackend.Courses = (*Faulty)(nil)
