package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFuncFiresInOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var got []int
	f.AfterFunc(300*time.Millisecond, func() { got = append(got, 3) })
	f.AfterFunc(100*time.Millisecond, func() { got = append(got, 1) })
	stopped := f.AfterFunc(200*time.Millisecond, func() { got = append(got, 2) })
	if !stopped.Stop() {
		t.Fatalf("Stop on pending func should report true")
	}

	f.Advance(250 * time.Millisecond)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got=%v, want [1]", got)
	}
	f.Advance(time.Second)
	if len(got) != 2 || got[1] != 3 {
		t.Fatalf("got=%v, want [1 3]", got)
	}
	if f.Pending() != 0 {
		t.Fatalf("pending=%d, want 0", f.Pending())
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	f.Advance(3 * time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatalf("expected a tick")
	}
	select {
	case <-tk.C():
		t.Fatalf("ticks must not queue beyond channel capacity")
	default:
	}
	tk.Stop()
	f.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatalf("stopped ticker fired")
	default:
	}
	if got := f.Now(); !got.Equal(time.Unix(4, 0)) {
		t.Fatalf("now=%v", got)
	}
}
