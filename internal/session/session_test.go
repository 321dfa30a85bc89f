package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineLifecycle(t *testing.T) {
	t.Parallel()

	m := NewMachine(RoleServer, clock.NewMock())
	assert.Equal(t, Connecting, m.State())
	assert.False(t, m.IsConnected())

	require.NoError(t, m.Open())
	assert.True(t, m.IsConnected())

	assert.True(t, m.Close())
	assert.Equal(t, Disconnected, m.State())
	assert.False(t, m.Close(), "second close must be a no-op")
}

func TestMachineInvalidTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		prep func(m *Machine)
		step func(m *Machine) error
	}{
		{
			name: "open twice",
			role: RoleServer,
			prep: func(m *Machine) { _ = m.Open() },
			step: (*Machine).Open,
		},
		{
			name: "open after close",
			role: RoleServer,
			prep: func(m *Machine) { m.Close() },
			step: (*Machine).Open,
		},
		{
			name: "server reconnect",
			role: RoleServer,
			prep: func(m *Machine) { m.Close() },
			step: (*Machine).Reconnect,
		},
		{
			name: "client reconnect while connected",
			role: RoleClient,
			prep: func(m *Machine) { _ = m.Open() },
			step: (*Machine).Reconnect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewMachine(tt.role, clock.NewMock())
			tt.prep(m)
			before := m.State()
			assert.ErrorIs(t, tt.step(m), ErrInvalidTransition)
			assert.Equal(t, before, m.State())
		})
	}
}

func TestMachineClientReconnect(t *testing.T) {
	t.Parallel()

	m := NewMachine(RoleClient, clock.NewMock())
	require.NoError(t, m.Open())
	m.Close()
	require.NoError(t, m.Reconnect())
	assert.Equal(t, Connecting, m.State())

	// a failed handshake goes straight back to Disconnected
	assert.True(t, m.Close())
	require.NoError(t, m.Reconnect())
	require.NoError(t, m.Open())
}

func TestMachineOnChange(t *testing.T) {
	t.Parallel()

	m := NewMachine(RoleClient, clock.NewMock())

	var got [][2]State
	m.OnChange(func(from, to State) {
		// callbacks run unlocked, so reading state here must not deadlock
		_ = m.State()
		got = append(got, [2]State{from, to})
	})

	require.NoError(t, m.Open())
	m.Close()
	m.Close()
	require.NoError(t, m.Reconnect())

	assert.Equal(t, [][2]State{
		{Connecting, Connected},
		{Connected, Disconnected},
		{Disconnected, Connecting},
	}, got)
}

func TestMachineTouch(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	mock.Set(time.Unix(1000, 0))
	m := NewMachine(RoleServer, mock)
	assert.True(t, m.LastSeen().IsZero())

	require.NoError(t, m.Open())
	assert.Equal(t, time.Unix(1000, 0), m.LastSeen())

	mock.Add(5 * time.Second)
	m.Touch()
	assert.Equal(t, time.Unix(1005, 0), m.LastSeen())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestReconnectorFiresAfterDelay(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	var fired atomic.Int32
	r := NewReconnector(mock, 0, func() { fired.Add(1) })
	assert.Equal(t, DefaultReconnectDelay, r.Delay())

	r.Schedule()
	assert.True(t, r.Pending())

	mock.Add(2999 * time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() != 0 }, 50*time.Millisecond, 5*time.Millisecond)

	mock.Add(time.Millisecond)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !r.Pending() }, time.Second, 5*time.Millisecond)

	mock.Add(time.Minute)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestReconnectorRescheduleReplacesPending(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	var fired atomic.Int32
	r := NewReconnector(mock, 3*time.Second, func() { fired.Add(1) })

	r.Schedule()
	mock.Add(2 * time.Second)
	r.Schedule()

	// the first timer would have fired at 3s
	mock.Add(1500 * time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() != 0 }, 50*time.Millisecond, 5*time.Millisecond)

	mock.Add(1500 * time.Millisecond)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Minute)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestReconnectorCancel(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	var fired atomic.Int32
	r := NewReconnector(mock, time.Second, func() { fired.Add(1) })

	assert.False(t, r.Cancel())
	r.Schedule()
	assert.True(t, r.Cancel())
	assert.False(t, r.Pending())

	mock.Add(time.Minute)
	assert.Never(t, func() bool { return fired.Load() != 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestReconnectorDropsStaleFire(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	r := NewReconnector(clock.NewMock(), time.Second, func() { fired.Add(1) })

	r.Schedule()
	r.mu.Lock()
	stale := r.gen
	r.mu.Unlock()
	r.Schedule()

	r.fire(stale)
	assert.Equal(t, int32(0), fired.Load())
	assert.True(t, r.Pending())
}

func TestReconnectorConcurrentSchedule(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	var fired atomic.Int32
	r := NewReconnector(mock, time.Second, func() { fired.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Schedule()
		}()
	}
	wg.Wait()

	mock.Add(time.Second)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}
