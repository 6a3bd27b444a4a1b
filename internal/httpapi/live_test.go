package httpapi_test

import (
	"net/http"
	"testing"
)

func TestLive_StartSetsRecording(t *testing.T) {
	e := newEnv(t)
	id := e.createSession(t, "alice")

	resp := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status: got %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, resp)
	if got["room"] != "intrascribe_room_"+id {
		t.Errorf("room = %v", got["room"])
	}
	if got["status"] != "recording" {
		t.Errorf("status = %v", got["status"])
	}

	sess, err := e.reg.SessionByID(t.Context(), id, "alice")
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if string(sess.Status) != "recording" {
		t.Errorf("session status = %q, want recording", sess.Status)
	}
}

func TestLive_StartOwnerIsolation(t *testing.T) {
	e := newEnv(t)
	id := e.createSession(t, "alice")

	resp := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", "mallory", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
	e.live.mu.Lock()
	defer e.live.mu.Unlock()
	if len(e.live.started) != 0 {
		t.Error("adapter was started for a foreign owner")
	}
}

func TestLive_StopWithoutStartIs404(t *testing.T) {
	e := newEnv(t)
	id := e.createSession(t, "alice")

	resp := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stop", "alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestLive_FramesRequireServiceToken(t *testing.T) {
	e := newEnv(t)
	id := e.createSession(t, "alice")
	e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", "alice", nil)

	body := map[string]any{"sample_rate": 24000, "samples": []int16{1, 2, 3}}
	resp := e.do(t, http.MethodPost, "/internal/v1/sessions/"+id+"/frames", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token: got %d, want 401", resp.StatusCode)
	}

	resp = e.doInternal(t, http.MethodPost, "/internal/v1/sessions/"+id+"/frames", body)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status with token: got %d, want 204", resp.StatusCode)
	}

	e.live.mu.Lock()
	defer e.live.mu.Unlock()
	if got := len(e.live.frames[id]); got != 1 {
		t.Fatalf("pushed frames = %d, want 1", got)
	}
	if got := e.live.frames[id][0].SampleRate; got != 24000 {
		t.Errorf("frame sample rate = %d, want 24000", got)
	}
}

func TestLive_StartStopRoundTrip(t *testing.T) {
	e := newEnv(t)
	id := e.createSession(t, "alice")

	e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", "alice", nil)
	resp := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/stop", "alice", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("stop status: got %d, want 204", resp.StatusCode)
	}

	e.live.mu.Lock()
	defer e.live.mu.Unlock()
	if len(e.live.started) != 0 {
		t.Error("adapter still live after stop")
	}
}
