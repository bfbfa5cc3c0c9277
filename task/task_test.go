package task

import (
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(log.New(os.Stdout, "", 0))
}

func waitStatus(t *testing.T, m *Manager, id string, want Status) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Get(id)
		require.NoError(t, err)
		if snap.Status == want {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return Snapshot{}
}

func TestManager_Lifecycle(t *testing.T) {
	m := testManager()

	id := m.Start(func(h *Handle) {
		h.Logf("collecting %s", "다온아이앤씨")
		h.Progress(40)
		h.AddFile("downloads/report.xlsx")
		h.Complete()
	})
	require.NotEmpty(t, id)

	snap := waitStatus(t, m, id, StatusCompleted)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, []string{"downloads/report.xlsx"}, snap.Files)
	require.Len(t, snap.Log, 1)
	assert.Contains(t, snap.Log[0], "다온아이앤씨")
	assert.False(t, snap.Finished.IsZero())
}

func TestManager_Failure(t *testing.T) {
	m := testManager()

	id := m.Start(func(h *Handle) {
		h.Fail(errors.New("로그인 실패"))
	})

	snap := waitStatus(t, m, id, StatusFailed)
	assert.Equal(t, "로그인 실패", snap.Error)
}

func TestManager_PanicBecomesFailure(t *testing.T) {
	m := testManager()

	id := m.Start(func(h *Handle) {
		panic("selector gone")
	})

	snap := waitStatus(t, m, id, StatusFailed)
	assert.Contains(t, snap.Error, "selector gone")
}

func TestManager_GetUnknown(t *testing.T) {
	m := testManager()
	_, err := m.Get("no-such-task")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandle_ProgressTransitionsAndClamps(t *testing.T) {
	m := testManager()
	started := make(chan struct{})
	release := make(chan struct{})

	id := m.Start(func(h *Handle) {
		h.Progress(150)
		close(started)
		<-release
		h.Complete()
	})

	<-started
	snap, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 100, snap.Progress)

	close(release)
	waitStatus(t, m, id, StatusCompleted)
}

func TestHandle_ProgressNeverRegresses(t *testing.T) {
	m := testManager()
	done := make(chan struct{})

	id := m.Start(func(h *Handle) {
		h.Progress(60)
		h.Progress(30)
		close(done)
		h.Complete()
	})

	<-done
	snap := waitStatus(t, m, id, StatusCompleted)
	assert.Equal(t, 100, snap.Progress)
}

func TestManager_ConcurrentGet(t *testing.T) {
	m := testManager()
	id := m.Start(func(h *Handle) {
		for i := 0; i < 50; i++ {
			h.Logf("step %d", i)
			h.Progress(i * 2)
		}
		h.Complete()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := m.Get(id); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	waitStatus(t, m, id, StatusCompleted)
}
