package editor

import "testing"

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager()
	s := m.Create(nil)

	if s.ID == "" {
		t.Fatal("session has no id")
	}
	if s.Controller.State() != StateIdle {
		t.Errorf("new session state = %v, want idle", s.Controller.State())
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Error("Get did not return the created session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get returned a session for an unknown id")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestManagerCloseReleasesResources(t *testing.T) {
	m := NewManager()

	cleanups := 0
	s := m.Create(func(id string) (RenderSink, func()) {
		return nil, func() { cleanups++ }
	})

	video := &fakeTransport{}
	s.Registry.AddVideo("clip.mp4", "", video)
	s.Controller.Activate()

	if !m.Close(s.ID) {
		t.Fatal("Close returned false for live session")
	}
	if m.Close(s.ID) {
		t.Error("Close returned true for already-closed session")
	}

	if !video.isClosed() {
		t.Error("video transport not released on session close")
	}
	if cleanups != 1 {
		t.Errorf("cleanup ran %d times, want 1", cleanups)
	}

	// Session close is idempotent even when called directly again.
	s.Close()
	if cleanups != 1 {
		t.Errorf("cleanup ran %d times after double close, want 1", cleanups)
	}
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()
	a := m.Create(nil)
	b := m.Create(nil)

	m.CloseAll()

	if m.Count() != 0 {
		t.Errorf("Count = %d after CloseAll, want 0", m.Count())
	}
	for _, s := range []*Session{a, b} {
		if _, ok := m.Get(s.ID); ok {
			t.Error("session still reachable after CloseAll")
		}
	}
}
