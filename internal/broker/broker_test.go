package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zopieux/rthumbd/internal/flavor"
	"github.com/zopieux/rthumbd/internal/media"
	"github.com/zopieux/rthumbd/internal/provider"
	"github.com/zopieux/rthumbd/internal/registry"
	"github.com/zopieux/rthumbd/internal/rthumberr"
)

// alwaysFailProvider fails every job, so ProcessRequest's failures path
// exercises the broker's Error-then-Finished emission.
type alwaysFailProvider struct{}

func (alwaysFailProvider) Name() string                 { return "always-fail" }
func (alwaysFailProvider) SupportedMimeTypes() []string { return []string{"image/png"} }
func (alwaysFailProvider) Process(_ int, _ string, _ media.Job) error {
	return errSimulated
}

var errSimulated = &simulatedError{}

type simulatedError struct{}

func (*simulatedError) Error() string { return "simulated failure" }

func newTestBroker(t *testing.T, p provider.Provider) *Broker {
	t.Helper()
	reg := registry.NewBuilder(t.TempDir(), 2).Register(p).Build()
	return New(reg, Config{RequestChannelCapacity: 8, ReplyChannelCapacity: 32, WorkerPoolSize: 4})
}

func TestEnqueueHandlesAreStrictlyIncreasing(t *testing.T) {
	b := newTestBroker(t, alwaysFailProvider{})

	var handles []media.Handle
	for i := 0; i < 5; i++ {
		h, err := b.Enqueue([]string{"file:///a.png"}, []string{"image/png"}, flavor.Normal)
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		handles = append(handles, h)
	}
	for i := 1; i < len(handles); i++ {
		if handles[i] <= handles[i-1] {
			t.Errorf("handle %d (%d) is not strictly greater than handle %d (%d)", i, handles[i], i-1, handles[i-1])
		}
	}
}

func TestEnqueueRejectsLengthMismatch(t *testing.T) {
	b := newTestBroker(t, alwaysFailProvider{})
	_, err := b.Enqueue([]string{"file:///a.png"}, nil, flavor.Normal)
	if !errors.Is(err, rthumberr.ErrLengthMismatch) {
		t.Errorf("Enqueue with mismatched lengths = %v, want ErrLengthMismatch", err)
	}
}

func TestRunEmitsStartedReadyErrorFinishedPerHandle(t *testing.T) {
	b := newTestBroker(t, alwaysFailProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	handle, err := b.Enqueue([]string{"file:///a.png"}, []string{"image/png"}, flavor.Normal)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var started, ready, errs, finished int
	timeout := time.After(5 * time.Second)
	for finished == 0 {
		select {
		case r := <-b.Replies():
			if r.Handle != handle {
				t.Fatalf("reply for unexpected handle %d, want %d", r.Handle, handle)
			}
			switch r.Kind {
			case ReplyStarted:
				started++
			case ReplyReady:
				ready++
			case ReplyError:
				errs++
			case ReplyFinished:
				finished++
			}
		case <-timeout:
			t.Fatal("timed out waiting for the full signal sequence")
		}
	}

	if started != 1 || ready != 1 || finished != 1 || errs != 1 {
		t.Errorf("signal counts = started=%d ready=%d error=%d finished=%d, want 1/1/1/1", started, ready, errs, finished)
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	b := newTestBroker(t, alwaysFailProvider{})
	b.Close()
	if _, err := b.Enqueue([]string{"file:///a.png"}, []string{"image/png"}, flavor.Normal); err == nil {
		t.Error("Enqueue should fail once the broker is closed")
	}
}
