package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandleEventPrefersViewBindings(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = append(got, "global") }})
	r.AddView("room", "quiet", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = append(got, "room") }})

	if !r.HandleEvent("room", runeEvent('q')) {
		t.Fatal("expected q to be handled on room")
	}
	if !r.HandleEvent("rooms", runeEvent('q')) {
		t.Fatal("expected q to fall back to the global binding")
	}
	if r.HandleEvent("room", runeEvent('x')) {
		t.Error("unbound key reported as handled")
	}
	if want := []string{"room", "global"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHandleEventSpecialKeys(t *testing.T) {
	r := NewRegistry()
	called := false
	r.AddGlobal("back", &Action{Key: tcell.KeyEscape, Handler: func() { called = true }})

	if !r.HandleEvent("room", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !called {
		t.Error("escape binding did not run")
	}
}

func TestHintsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true})
	r.AddGlobal("help", &Action{Key: tcell.KeyRune, Rune: '?', Description: "?:help", Visible: true})
	r.AddView("room", "more", &Action{Key: tcell.KeyRune, Rune: 'm', Description: "m:older", Visible: true})
	r.AddView("room", "hidden", &Action{Key: tcell.KeyRune, Rune: 'G', Description: "G:follow"})
	r.AddView("room", "compose", &Action{Key: tcell.KeyRune, Rune: 'i', Description: "i:compose", Visible: true})

	want := []string{"m:older", "i:compose", "q:quit", "?:help"}
	for i := 0; i < 5; i++ {
		if got := r.Hints("room"); !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAddReplacesByName(t *testing.T) {
	r := NewRegistry()
	first, second := false, false
	r.AddView("room", "more", &Action{Key: tcell.KeyRune, Rune: 'm', Description: "m:old", Visible: true, Handler: func() { first = true }})
	r.AddView("room", "more", &Action{Key: tcell.KeyRune, Rune: 'm', Description: "m:older", Visible: true, Handler: func() { second = true }})

	r.HandleEvent("room", runeEvent('m'))
	if first || !second {
		t.Errorf("got first=%v second=%v, want only the replacement to run", first, second)
	}
	if got := r.Hints("room"); len(got) != 1 || got[0] != "m:older" {
		t.Errorf("got hints %v, want [m:older]", got)
	}
}
