package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("expected no message on a fresh model")
	}

	f.Warn("connection lost")
	msg := f.Current()
	if msg == nil || msg.Text != "connection lost" || msg.Level != FlashWarn {
		t.Fatalf("got %+v, want the warn message", msg)
	}

	now = now.Add(9 * time.Second)
	if f.Current() != nil {
		t.Error("expected the warn message to expire after 8s")
	}
}

func TestFlashWatchAndErr(t *testing.T) {
	f := NewFlashModel()
	f.Err(nil)
	f.Err(errors.New("boom"))

	select {
	case m := <-f.Watch():
		if m.Text != "boom" || m.Level != FlashErr {
			t.Errorf("got %+v, want boom at error level", m)
		}
	default:
		t.Fatal("expected a message on the watch channel")
	}

	f.Clear()
	if f.Current() != nil {
		t.Error("expected Clear to drop the message")
	}
}

func TestFlashRepeatsCollapse(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Warn("send: not connected")
	f.Warn("send: not connected")
	if got := f.Current().Repeats; got != 1 {
		t.Errorf("Repeats = %d, want 1", got)
	}

	f.Info("send: not connected")
	if got := f.Current().Repeats; got != 0 {
		t.Errorf("Repeats after a level change = %d, want 0", got)
	}

	now = now.Add(5 * time.Second)
	f.Info("send: not connected")
	if got := f.Current().Repeats; got != 0 {
		t.Errorf("Repeats after expiry = %d, want 0", got)
	}

	bar := NewFlashBar(DefaultTheme())
	f.Info("send: not connected")
	bar.Update(f.Current())
	if text := bar.GetText(true); text != " send: not connected (x2)" {
		t.Errorf("bar text = %q", text)
	}
}
