package tsfn

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-tsfn/errors"
)

type finalizeRecord struct {
	calls   int
	data    any
	context any
}

func newManual[T any](t *testing.T, cfg Config[T]) (*Queue[T], *manualWaker) {
	t.Helper()
	owner := &manualOwner{}
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	if cfg.InitialThreadCount == 0 {
		cfg.InitialThreadCount = 1
	}
	q, err := New(owner, cfg)
	require.NoError(t, err)
	return q, owner.waker
}

func collect[T any](out *[]T) CallFunc[T] {
	return func(_ any, item T) { *out = append(*out, item) }
}

func TestNew_Validation(t *testing.T) {
	noop := func(any, int) {}

	tests := []struct {
		name  string
		owner Owner
		cfg   Config[int]
	}{
		{"nil owner", nil, Config[int]{Name: "q", Call: noop, InitialThreadCount: 1}},
		{"nil call", &manualOwner{}, Config[int]{Name: "q", InitialThreadCount: 1}},
		{"empty name", &manualOwner{}, Config[int]{Call: noop, InitialThreadCount: 1}},
		{"zero threads", &manualOwner{}, Config[int]{Name: "q", Call: noop}},
		{"too many threads", &manualOwner{}, Config[int]{Name: "q", Call: noop, InitialThreadCount: MaxThreadCount + 1}},
		{"negative size", &manualOwner{}, Config[int]{Name: "q", Call: noop, InitialThreadCount: 1, MaxQueueSize: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(tt.owner, tt.cfg)
			assert.Nil(t, q)
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			kind, ok := errors.KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, errors.KindInvalidArgument, kind)
		})
	}
}

func TestNew_BoundaryThreadCounts(t *testing.T) {
	for _, n := range []int{1, MaxThreadCount} {
		q, _ := newManual(t, Config[int]{Call: func(any, int) {}, InitialThreadCount: n})
		assert.Equal(t, n, q.ThreadCount())
		assert.Equal(t, StateOpen, q.State())
	}
}

func TestNew_OwnerFailure(t *testing.T) {
	cause := stderrors.New("owner gone")
	q, err := New(&manualOwner{fail: cause}, Config[int]{
		Name:               "q",
		Call:               func(any, int) {},
		InitialThreadCount: 1,
	})
	assert.Nil(t, q)
	assert.ErrorIs(t, err, errors.ErrGenericFailure)
	assert.ErrorIs(t, err, cause)
}

func TestQueue_Context(t *testing.T) {
	ctxVal := &struct{ n int }{7}
	q, _ := newManual(t, Config[int]{Context: ctxVal, Call: func(any, int) {}})

	got, err := q.Context()
	require.NoError(t, err)
	assert.Same(t, ctxVal, got)

	// Still readable after shutdown.
	require.NoError(t, q.Release(ReleaseNormal))
	got, err = q.Context()
	require.NoError(t, err)
	assert.Same(t, ctxVal, got)

	var nilQ *Queue[int]
	_, err = nilQ.Context()
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestQueue_NilReceiver(t *testing.T) {
	var q *Queue[int]
	assert.ErrorIs(t, q.Call(1, ModeBlocking), errors.ErrInvalidArgument)
	assert.ErrorIs(t, q.Acquire(), errors.ErrInvalidArgument)
	assert.ErrorIs(t, q.Release(ReleaseNormal), errors.ErrInvalidArgument)
	assert.ErrorIs(t, q.Ref(), errors.ErrInvalidArgument)
	assert.ErrorIs(t, q.Unref(), errors.ErrInvalidArgument)
	assert.NotPanics(t, q.Drop)
}

func TestCall_FIFO(t *testing.T) {
	var got []int
	q, w := newManual(t, Config[int]{Call: collect(&got)})

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	assert.Equal(t, 5, q.Len())
	assert.Empty(t, got, "nothing runs before the owner wakes")

	w.drain()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 0, q.Len())
}

func TestCall_InvalidMode(t *testing.T) {
	q, _ := newManual(t, Config[int]{Call: func(any, int) {}})
	err := q.Call(1, CallMode(9))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	assert.Equal(t, 0, q.Len())
}

func TestCall_NonBlockingFull(t *testing.T) {
	var got []string
	q, w := newManual(t, Config[string]{Call: collect(&got), MaxQueueSize: 2})

	require.NoError(t, q.Call("a", ModeNonBlocking))
	require.NoError(t, q.Call("b", ModeNonBlocking))

	err := q.Call("c", ModeNonBlocking)
	require.ErrorIs(t, err, errors.ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2, e.Value)

	w.drain()
	assert.Equal(t, []string{"a", "b"}, got)
	require.NoError(t, q.Call("c", ModeNonBlocking))
}

func TestCall_UnboundedNeverFull(t *testing.T) {
	q, _ := newManual(t, Config[int]{Call: func(any, int) {}})
	for i := 0; i < 5000; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	assert.Equal(t, 5000, q.Len())
	assert.Equal(t, 0, q.Cap())
}

func TestAcquireRelease(t *testing.T) {
	q, _ := newManual(t, Config[int]{Call: func(any, int) {}})

	require.NoError(t, q.Acquire())
	require.NoError(t, q.Acquire())
	assert.Equal(t, 3, q.ThreadCount())

	require.NoError(t, q.Release(ReleaseNormal))
	require.NoError(t, q.Release(ReleaseNormal))
	assert.Equal(t, StateOpen, q.State())

	require.NoError(t, q.Release(ReleaseNormal))
	assert.Equal(t, StateClosing, q.State())
	assert.False(t, q.Aborted())

	err := q.Acquire()
	assert.ErrorIs(t, err, errors.ErrGenericFailure)
	assert.Equal(t, 0, q.ThreadCount())
}

func TestRelease_MoreThanAcquired(t *testing.T) {
	q, w := newManual(t, Config[int]{Call: func(any, int) {}})

	require.NoError(t, q.Release(ReleaseNormal))
	err := q.Release(ReleaseNormal)
	assert.ErrorIs(t, err, errors.ErrGenericFailure)

	w.drain()
	assert.Equal(t, StateClosed, q.State())
	assert.ErrorIs(t, q.Release(ReleaseNormal), errors.ErrGenericFailure)
}

func TestRelease_InvalidMode(t *testing.T) {
	q, _ := newManual(t, Config[int]{Call: func(any, int) {}})
	assert.ErrorIs(t, q.Release(ReleaseMode(5)), errors.ErrInvalidArgument)
	assert.Equal(t, 1, q.ThreadCount())
}

func TestShutdown_DrainsThenFinalizesOnce(t *testing.T) {
	var got []int
	var fin finalizeRecord
	q, w := newManual(t, Config[int]{
		Context:      "ctx",
		Call:         collect(&got),
		FinalizeData: "data",
		Finalize: func(data, context any) {
			fin.calls++
			fin.data = data
			fin.context = context
		},
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	require.NoError(t, q.Release(ReleaseNormal))
	assert.Equal(t, StateClosing, q.State())

	assert.ErrorIs(t, q.Call(99, ModeNonBlocking), errors.ErrClosing)
	assert.ErrorIs(t, q.Call(99, ModeBlocking), errors.ErrClosing)

	w.drain()
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 1, fin.calls)
	assert.Equal(t, "data", fin.data)
	assert.Equal(t, "ctx", fin.context)
	assert.Equal(t, StateClosed, q.State())
	assert.True(t, w.isClosed())

	// Further wakes are ignored; the finalizer never reruns.
	w.Send()
	w.drain()
	q.dispatch()
	assert.Equal(t, 1, fin.calls)
}

func TestShutdown_FinalizeObservesClosing(t *testing.T) {
	var during State
	var q *Queue[int]
	q, w := newManual(t, Config[int]{
		Call:     func(any, int) {},
		Finalize: func(any, any) { during = q.State() },
	})

	require.NoError(t, q.Release(ReleaseNormal))
	w.drain()
	assert.Equal(t, StateClosing, during)
	assert.Equal(t, StateClosed, q.State())
}

func TestShutdown_NilFinalize(t *testing.T) {
	q, w := newManual(t, Config[int]{Call: func(any, int) {}})
	require.NoError(t, q.Release(ReleaseNormal))
	w.drain()
	assert.Equal(t, StateClosed, q.State())
}

func TestRelease_AbortStillDrains(t *testing.T) {
	var got []int
	var finalized int
	q, w := newManual(t, Config[int]{
		Call:               collect(&got),
		Finalize:           func(any, any) { finalized++ },
		InitialThreadCount: 2,
	})

	require.NoError(t, q.Call(1, ModeNonBlocking))
	require.NoError(t, q.Call(2, ModeNonBlocking))
	require.NoError(t, q.Release(ReleaseAbort))

	assert.Equal(t, StateClosing, q.State())
	assert.True(t, q.Aborted())
	assert.Equal(t, 1, q.ThreadCount())

	// The remaining producer may still release its reference.
	require.NoError(t, q.Release(ReleaseNormal))
	assert.Equal(t, 0, q.ThreadCount())

	w.drain()
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, finalized)
	assert.True(t, q.Aborted())
}

func TestDrop(t *testing.T) {
	var finalized int
	q, w := newManual(t, Config[int]{
		Call:               func(any, int) {},
		Finalize:           func(any, any) { finalized++ },
		InitialThreadCount: 3,
	})

	q.Drop()
	assert.Equal(t, StateClosing, q.State())
	assert.True(t, q.Aborted())
	assert.Equal(t, 3, q.ThreadCount())

	q.Drop()
	w.drain()
	assert.Equal(t, 1, finalized)
}

func TestRefUnref(t *testing.T) {
	q, w := newManual(t, Config[int]{Call: func(any, int) {}})
	assert.True(t, q.Refed())
	assert.True(t, w.isRefed())

	require.NoError(t, q.Unref())
	require.NoError(t, q.Unref())
	assert.False(t, q.Refed())
	assert.False(t, w.isRefed())

	require.NoError(t, q.Ref())
	assert.True(t, q.Refed())
	assert.True(t, w.isRefed())

	// Keep-alive is independent of the producer count.
	require.NoError(t, q.Acquire())
	require.NoError(t, q.Unref())
	assert.Equal(t, 2, q.ThreadCount())
	assert.Equal(t, StateOpen, q.State())

	require.NoError(t, q.Release(ReleaseAbort))
	w.drain()
	require.NoError(t, q.Ref(), "ref after close is a no-op")
	assert.False(t, w.isRefed())
}

func TestDispatch_Budget(t *testing.T) {
	var n int
	q, w := newManual(t, Config[int]{Call: func(any, int) { n++ }})

	total := MaxDispatchPerWake*2 + 500
	for i := 0; i < total; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	sendsBefore := w.totalSends()

	require.True(t, w.wakeOnce())
	assert.Equal(t, MaxDispatchPerWake, n)
	assert.Equal(t, sendsBefore+1, w.totalSends(), "dispatch reschedules itself when items remain")

	w.drain()
	assert.Equal(t, total, n)
}

func TestDispatch_BudgetRearmsFinalize(t *testing.T) {
	var finalized int
	q, w := newManual(t, Config[int]{
		Call:     func(any, int) {},
		Finalize: func(any, any) { finalized++ },
	})
	for i := 0; i < MaxDispatchPerWake; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	require.NoError(t, q.Release(ReleaseNormal))

	require.True(t, w.wakeOnce())
	assert.Equal(t, 0, finalized)
	assert.Equal(t, StateClosing, q.State())

	w.drain()
	assert.Equal(t, 1, finalized)
	assert.Equal(t, StateClosed, q.State())
}

func TestCallback_PanicRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var got []int
	q, w := newManual(t, Config[int]{
		Logger: zap.New(core),
		Call: func(_ any, item int) {
			if item == 2 {
				panic("bad item")
			}
			got = append(got, item)
		},
		Finalize: func(any, any) { panic("bad finalizer") },
	})

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Call(i, ModeNonBlocking))
	}
	require.NoError(t, q.Release(ReleaseNormal))
	w.drain()

	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, StateClosed, q.State())
	assert.Equal(t, 1, logs.FilterMessage("threadsafe function callback panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("threadsafe function finalizer panicked").Len())

	entry := logs.FilterMessage("threadsafe function callback panicked").All()[0]
	assert.Equal(t, "test", entry.ContextMap()["tsfn"])
}

func TestCallback_Reentrant(t *testing.T) {
	var got []int
	var q *Queue[int]
	q, w := newManual(t, Config[int]{
		MaxQueueSize: 1,
		Call: func(_ any, item int) {
			got = append(got, item)
			switch {
			case item < 3:
				require.NoError(t, q.Call(item+1, ModeNonBlocking))
			case item == 3:
				require.NoError(t, q.Release(ReleaseNormal))
				assert.ErrorIs(t, q.Call(4, ModeNonBlocking), errors.ErrClosing)
			}
		},
	})

	require.NoError(t, q.Call(1, ModeNonBlocking))
	w.drain()
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, StateClosed, q.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "blocking", ModeBlocking.String())
	assert.Equal(t, "abort", ReleaseAbort.String())
}
