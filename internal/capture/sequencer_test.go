package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackamole/internal/utils"
)

// fakeViewer records selections and renders the selected ID as the frame.
type fakeViewer struct {
	mu       sync.Mutex
	selected int64
	order    []int64
	fail     map[int64]bool

	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (f *fakeViewer) SelectMarker(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = id
	f.order = append(f.order, id)
}

func (f *fakeViewer) RenderCurrentFrame() ([]byte, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[f.selected] {
		return nil, errors.New("gl context lost")
	}
	return []byte(fmt.Sprintf("frame-%d", f.selected)), nil
}

func (f *fakeViewer) selections() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.order...)
}

const testSettle = 5 * time.Millisecond

func waitIdle(t *testing.T, s *Sequencer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSequencer_CapturesInOrder(t *testing.T) {
	v := &fakeViewer{}
	s := New(v, v, testSettle, utils.Discard())
	defer s.Close()

	var mu sync.Mutex
	var progress []Progress
	s.Subscribe(func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})

	batch, err := s.EnqueueBatch([]int64{1, 2, 3})
	require.NoError(t, err)
	assert.NotEmpty(t, batch)
	waitIdle(t, s)

	assert.Equal(t, []int64{1, 2, 3}, v.selections())
	assert.Equal(t, map[int64][]byte{
		1: []byte("frame-1"),
		2: []byte("frame-2"),
		3: []byte("frame-3"),
	}, s.Results())
	assert.False(t, v.overlap.Load())
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, s.QueueLen())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(progress) == 3
	}, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, progress[2].Remaining)
	assert.Equal(t, batch, progress[2].Batch)
}

func TestSequencer_RenderFailureSkipsEntry(t *testing.T) {
	v := &fakeViewer{fail: map[int64]bool{2: true}}
	s := New(v, v, testSettle, utils.Discard())
	defer s.Close()

	_, err := s.EnqueueBatch([]int64{1, 2, 3})
	require.NoError(t, err)
	waitIdle(t, s)

	res := s.Results()
	assert.Len(t, res, 2)
	assert.Contains(t, res, int64(1))
	assert.NotContains(t, res, int64(2))
	assert.Contains(t, res, int64(3))
	assert.Equal(t, []int64{1, 2, 3}, v.selections())
}

func TestSequencer_NewBatchClearsResults(t *testing.T) {
	v := &fakeViewer{}
	s := New(v, v, testSettle, utils.Discard())
	defer s.Close()

	_, err := s.EnqueueBatch([]int64{7})
	require.NoError(t, err)
	waitIdle(t, s)
	require.Contains(t, s.Results(), int64(7))

	_, err = s.EnqueueBatch([]int64{8})
	require.NoError(t, err)
	waitIdle(t, s)
	assert.Equal(t, map[int64][]byte{8: []byte("frame-8")}, s.Results())
}

func TestSequencer_EmptyBatchStaysIdle(t *testing.T) {
	v := &fakeViewer{}
	s := New(v, v, testSettle, utils.Discard())
	defer s.Close()

	_, err := s.EnqueueBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, Idle, s.State())
	waitIdle(t, s)
	assert.Empty(t, v.selections())
}

func TestSequencer_CloseCancelsPendingCapture(t *testing.T) {
	v := &fakeViewer{}
	s := New(v, v, time.Hour, utils.Discard())

	_, err := s.EnqueueBatch([]int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, Selecting, s.State())
	assert.Equal(t, 2, s.QueueLen())

	s.Close()
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, s.QueueLen())
	assert.Empty(t, s.Results())
	assert.Equal(t, []int64{1}, v.selections())

	_, err = s.EnqueueBatch([]int64{3})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Wait(context.Background()), ErrClosed)
	s.Close()
}

func TestSequencer_WaitHonoursContext(t *testing.T) {
	v := &fakeViewer{}
	s := New(v, v, time.Hour, utils.Discard())
	defer s.Close()
	_, err := s.EnqueueBatch([]int64{1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestSequencer_DefaultSettle(t *testing.T) {
	s := New(&fakeViewer{}, &fakeViewer{}, 0, nil)
	assert.Equal(t, SettleDelay, s.settle)
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "selecting", Selecting.String())
}
