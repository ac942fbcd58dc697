package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	runs    atomic.Int32
	created int
	err     error
}

func (j *fakeJob) SweepOverdue(context.Context) (int, error) {
	j.runs.Add(1)
	return j.created, j.err
}

func (j *fakeJob) PurgeSessions(context.Context) (int64, error) {
	return 2, nil
}

func TestRunNow(t *testing.T) {
	job := &fakeJob{created: 3}
	s := New(job, "0 */5 * * * *")
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	st := s.RunNow(context.Background())
	assert.Equal(t, SweepIdle, st.State)
	assert.Equal(t, 3, st.Created)
	assert.EqualValues(t, 2, st.Purged)
	assert.Equal(t, fixed, st.LastRun)
	assert.Equal(t, st, s.Status())
}

func TestRunNow_Error(t *testing.T) {
	job := &fakeJob{err: errors.New("db locked")}
	s := New(job, "@every 1m")

	st := s.RunNow(context.Background())
	assert.Equal(t, SweepError, st.State)
	assert.EqualError(t, st.Error, "db locked")
	assert.Zero(t, st.Purged, "sessions are not purged after a failed sweep")
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&fakeJob{}, "not a schedule")
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	job := &fakeJob{}
	s := New(job, "* * * * * *")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

type slowJob struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	runs    atomic.Int32
	hold    time.Duration
}

func (j *slowJob) SweepOverdue(context.Context) (int, error) {
	n := j.active.Add(1)
	defer j.active.Add(-1)
	for {
		m := j.maxSeen.Load()
		if n <= m || j.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	j.runs.Add(1)
	time.Sleep(j.hold)
	return 0, nil
}

func (j *slowJob) PurgeSessions(context.Context) (int64, error) {
	return 0, nil
}

func TestStart_SkipsOverlappingRuns(t *testing.T) {
	job := &slowJob{hold: 2500 * time.Millisecond}
	s := New(job, "* * * * * *")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(2 * time.Second)
	assert.EqualValues(t, 1, job.maxSeen.Load(), "a slow sweep must not overlap the next tick")
}

func TestStop_ReleasesWatcher(t *testing.T) {
	s := New(&fakeJob{}, "@every 1h")
	require.NoError(t, s.Start(context.Background()))

	done := s.done
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not signal the context watcher")
	}

	// A second Stop and a restart are both safe.
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
