package wsutil

import "testing"

func TestSafeSendDelivers(t *testing.T) {
	ch := make(chan []byte, 1)
	SafeSend(ch, []byte("frame"))
	select {
	case got := <-ch:
		if string(got) != "frame" {
			t.Errorf("received %q", got)
		}
	default:
		t.Fatal("frame not delivered")
	}
}

func TestSafeSendDropsWhenFull(t *testing.T) {
	ch := make(chan []byte, 1)
	ch <- []byte("first")
	SafeSend(ch, []byte("second"))
	if got := <-ch; string(got) != "first" {
		t.Errorf("received %q, want the original frame", got)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected extra frame %q", got)
	default:
	}
}

func TestSafeSendSurvivesClosedChannel(t *testing.T) {
	ch := make(chan []byte)
	close(ch)
	SafeSend(ch, []byte("frame"))
}
