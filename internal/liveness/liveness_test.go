package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/drones/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newDetectorAt(t time.Time, deps Dependencies) *Detector {
	d := New(deps)
	clock := &fakeClock{t: t}
	d.now = clock.now
	return d
}

func TestDetectZombiesMarksDeadProcessAsZombie(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{PIDAlive: func(string) bool { return false }})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress, UpdatedAt: now.Add(-time.Hour)}}
	d.DetectZombies([]*Record{r})

	assert.Equal(t, models.DroneZombie, r.Status.State)
}

func TestDetectZombiesPrefersStoppedWhenStopEventSeen(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{
		PIDAlive:     func(string) bool { return false },
		HasStopEvent: func(string) bool { return true },
	})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress, UpdatedAt: now.Add(-time.Hour)}}
	d.DetectZombies([]*Record{r})

	assert.Equal(t, models.DroneStopped, r.Status.State)
}

func TestDetectZombiesSkipsLivingProcess(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{PIDAlive: func(string) bool { return true }})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress}}
	d.DetectZombies([]*Record{r})

	assert.Equal(t, models.DroneInProgress, r.Status.State)
}

func TestDetectZombiesRespectsStartupGrace(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{PIDAlive: func(string) bool { return false }})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneStarting, UpdatedAt: now.Add(-5 * time.Second)}}
	d.DetectZombies([]*Record{r})

	assert.Equal(t, models.DroneStarting, r.Status.State)
}

func TestDetectCompletionMarkersClearsOnMarker(t *testing.T) {
	var killed string
	d := newDetectorAt(time.Now(), Dependencies{
		MarkerExists: func(string) bool { return true },
		KillQuiet:    func(name string) { killed = name },
	})

	r := &Record{Name: "drone-a", Worktree: "/tmp/wt", Status: models.DroneStatus{State: models.DroneInProgress}}
	d.DetectCompletionMarkers([]*Record{r})

	assert.Equal(t, models.DroneCompleted, r.Status.State)
	assert.Equal(t, "drone-a", killed)
}

func TestDetectPRCompletionThrottled(t *testing.T) {
	d := New(Dependencies{
		CheckPRState: func(string, string) bool { return true },
		Progress:     func(string) (int, int) { return 3, 3 },
	})

	r := &Record{Name: "drone-a", Branch: "feature/x", Status: models.DroneStatus{State: models.DroneInProgress}}
	d.DetectPRCompletion([]*Record{r})
	assert.Equal(t, models.DroneInProgress, r.Status.State, "should not fire before the throttle threshold")

	for i := 0; i < PRCompletionThrottle; i++ {
		d.Tick()
	}
	d.DetectPRCompletion([]*Record{r})
	assert.Equal(t, models.DroneCompleted, r.Status.State)
}

func TestDetectPRMergesReturnsCleanedNames(t *testing.T) {
	d := New(Dependencies{CheckPRState: func(string, string) bool { return true }})
	for i := 0; i < PRMergeCheckThrottle; i++ {
		d.Tick()
	}

	r := &Record{Name: "drone-a", Branch: "feature/x", Status: models.DroneStatus{State: models.DroneCompleted}}
	cleaned := d.DetectPRMerges([]*Record{r})
	require.Len(t, cleaned, 1)
	assert.Equal(t, "drone-a", cleaned[0])
}

func TestDetectIdleDrones(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{Progress: func(string) (int, int) { return 2, 2 }})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress}}
	d.DetectIdleDrones([]*Record{r})
	assert.Equal(t, models.DroneInProgress, r.Status.State, "first tick only starts the idle clock")

	clock := d.now().Add(IdleTimeout + time.Second)
	d.now = func() time.Time { return clock }
	d.DetectIdleDrones([]*Record{r})
	assert.Equal(t, models.DroneCompleted, r.Status.State)
}

func TestDetectIdleDronesResetsWhenProgressRegresses(t *testing.T) {
	now := time.Now()
	total := 2
	d := newDetectorAt(now, Dependencies{Progress: func(string) (int, int) { return total, 2 }})

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress}}
	total = 2
	d.DetectIdleDrones([]*Record{r})
	total = 1
	d.DetectIdleDrones([]*Record{r})

	_, tracked := d.allTasksDoneSince["drone-a"]
	assert.False(t, tracked)
}

func TestDetectStalledDronesFlagsOnce(t *testing.T) {
	now := time.Now()
	d := newDetectorAt(now, Dependencies{
		PIDAlive: func(string) bool { return true },
		Progress: func(string) (int, int) { return 1, 3 },
	})
	d.RecordEvent("drone-a")

	clock := now.Add(StallTimeout + time.Second)
	d.now = func() time.Time { return clock }

	r := &Record{Name: "drone-a", Status: models.DroneStatus{State: models.DroneInProgress}}
	stalled := d.DetectStalledDrones([]*Record{r})
	require.Len(t, stalled, 1)

	stalledAgain := d.DetectStalledDrones([]*Record{r})
	assert.Empty(t, stalledAgain, "a drone is only flagged once")
}

func TestDetermineLiveness(t *testing.T) {
	assert.Equal(t, "completed", DetermineLiveness(models.DroneCompleted, false, false))
	assert.Equal(t, "stopped", DetermineLiveness(models.DroneStopped, false, false))
	assert.Equal(t, "dead", DetermineLiveness(models.DroneZombie, false, false))
	assert.Equal(t, "working", DetermineLiveness(models.DroneInProgress, true, false))
	assert.Equal(t, "completed", DetermineLiveness(models.DroneInProgress, false, true))
	assert.Equal(t, "dead", DetermineLiveness(models.DroneInProgress, false, false))
}

func TestDetermineMemberLiveness(t *testing.T) {
	tasks := []TaskOwnerStatus{{Owner: "worker-1", Status: "in_progress"}}
	assert.Equal(t, "working", DetermineMemberLiveness("worker-1", tasks))
	assert.Equal(t, "idle", DetermineMemberLiveness("worker-2", tasks))
}
