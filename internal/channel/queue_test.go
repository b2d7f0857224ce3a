package channel

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Post(i)
	}
	if q.Len() != 5 {
		t.Fatalf("len = %d, want 5", q.Len())
	}
	got := q.Drain()
	for i, v := range got {
		if v != i {
			t.Fatalf("drain = %v, want 0..4 in order", got)
		}
	}
	if len(q.Drain()) != 0 {
		t.Error("second drain should be empty")
	}
}

func TestQueue_ReadyCoalesces(t *testing.T) {
	q := NewQueue[string]()
	q.Post("a")
	q.Post("b")
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not signalled")
	}
	select {
	case <-q.Ready():
		t.Fatal("ready should hold at most one signal")
	default:
	}
	if got := q.Drain(); len(got) != 2 {
		t.Errorf("drain = %v, want 2 items", got)
	}
}

func TestQueue_PerSenderOrder(t *testing.T) {
	type msg struct{ sender, seq int }
	q := NewQueue[msg]()
	const senders, perSender = 4, 250

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				q.Post(msg{s, i})
			}
		}(s)
	}

	var got []msg
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-q.Ready():
		case <-done:
			finished = true
		}
		got = append(got, q.Drain()...)
	}
	got = append(got, q.Drain()...)

	if len(got) != senders*perSender {
		t.Fatalf("received %d messages, want %d", len(got), senders*perSender)
	}
	next := make([]int, senders)
	for _, m := range got {
		if m.seq != next[m.sender] {
			t.Fatalf("sender %d: got seq %d, want %d", m.sender, m.seq, next[m.sender])
		}
		next[m.sender]++
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int]()
	q.Post(1)
	q.Post(2)
	if n := q.Close(); n != 2 {
		t.Errorf("close discarded %d, want 2", n)
	}
	if q.Post(3) {
		t.Error("post after close should report false")
	}
	if q.Len() != 0 {
		t.Errorf("len after close = %d, want 0", q.Len())
	}
}

func TestHandshake(t *testing.T) {
	h := NewHandshake()
	go func() {
		time.Sleep(10 * time.Millisecond)
		h.Signal(nil)
		h.Signal(errTest)
	}()
	ok, err := h.Wait(time.Second)
	if !ok || err != nil {
		t.Fatalf("Wait = %v, %v; want true, nil", ok, err)
	}
}

func TestHandshake_Timeout(t *testing.T) {
	h := NewHandshake()
	start := time.Now()
	ok, err := h.Wait(20 * time.Millisecond)
	if ok || err != nil {
		t.Fatalf("Wait = %v, %v; want false, nil", ok, err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait overran its bound")
	}
	h.Signal(errTest)
	ok, err = h.Wait(time.Second)
	if !ok || err != errTest {
		t.Errorf("Wait after late signal = %v, %v", ok, err)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
