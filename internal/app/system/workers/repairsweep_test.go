package workers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/projecthub/internal/app/groupengine"
	"github.com/dalemusser/projecthub/internal/app/provisioning"
	"github.com/dalemusser/projecthub/internal/app/store/groupbackend"
	"github.com/dalemusser/projecthub/internal/app/system/workers"
	"github.com/dalemusser/projecthub/internal/domain/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingRepairer struct {
	calls atomic.Int32
	err   error
}

func (c *countingRepairer) RepairActiveCourses(context.Context) (provisioning.RepairResult, error) {
	c.calls.Add(1)
	return provisioning.RepairResult{Checked: 1}, c.err
}

func TestRepairSweep_RunsOnTickerUntilStopped(t *testing.T) {
	rep := &countingRepairer{}
	w := workers.NewRepairSweep(rep, zap.NewNop(), 5*time.Millisecond)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for rep.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	n := rep.calls.Load()
	if n < 2 {
		t.Fatalf("sweep ran %d times, want at least 2", n)
	}
	time.Sleep(20 * time.Millisecond)
	if rep.calls.Load() != n {
		t.Error("sweep kept running after Stop")
	}
}

func TestRepairSweep_RunOnceRepairsActiveCourses(t *testing.T) {
	mem := groupbackend.NewMemory()
	ctx := context.Background()
	mem.PutCourse(models.Course{ID: "c1", Code: "SWP391", Status: models.CourseActive})
	mem.PutCourse(models.Course{ID: "c2", Code: "OLD", Status: models.CourseInactive})

	active, _ := mem.CreateGroup(ctx, models.Group{CourseID: "c1", Name: "SWP391-01", MaxMembers: 5})
	inactive, _ := mem.CreateGroup(ctx, models.Group{CourseID: "c2", Name: "OLD-01", MaxMembers: 5})
	for _, g := range []models.Group{active, inactive} {
		if err := mem.AddMember(ctx, models.GroupMembership{GroupID: g.ID, UserID: "A"}); err != nil {
			t.Fatal(err)
		}
	}

	svc := provisioning.New(mem, mem, groupengine.New(mem))
	w := workers.NewRepairSweep(svc, zap.NewNop(), time.Hour)

	res := w.RunOnce(ctx)
	if res.Checked != 1 || res.Repaired != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want 1 checked and repaired", res)
	}

	g, _ := mem.GetGroup(ctx, active.ID)
	if g.LeaderID != "A" {
		t.Errorf("active course group leader = %q, want A", g.LeaderID)
	}
	g, _ = mem.GetGroup(ctx, inactive.ID)
	if g.LeaderID != "" {
		t.Errorf("inactive course group was touched: leader %q", g.LeaderID)
	}
}

func TestRepairSweep_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rep := &countingRepairer{err: errors.New("store down")}
	w := workers.NewRepairSweep(rep, zap.New(core), time.Hour)

	w.RunOnce(context.Background())
	if logs.FilterMessage("repair sweep failed").Len() != 1 {
		t.Error("expected an error log for the failed sweep")
	}
}
