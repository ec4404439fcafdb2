package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"redub/internal/services"
)

func TestConnectionManagerSendReceive(t *testing.T) {
	clientEnd, workerEnd := net.Pipe()
	conn := NewConnectionManager(clientEnd, clientEnd, 1<<20)
	defer conn.Close()
	defer workerEnd.Close()

	sent := Envelope{Header: []byte(`{"type":"ping","correlation_id":"abc"}`)}
	go func() {
		env, err := readEnvelope(workerEnd, 0)
		if err != nil {
			t.Errorf("worker read: %v", err)
			return
		}
		// Echo it back as the response.
		if err := writeEnvelope(workerEnd, env); err != nil {
			t.Errorf("worker write: %v", err)
		}
	}()

	if err := conn.Send(sent); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got.Header, sent.Header) {
		t.Errorf("received header = %s", got.Header)
	}
}

func TestConnectionManagerCloseIdempotent(t *testing.T) {
	clientEnd, workerEnd := net.Pipe()
	defer workerEnd.Close()
	conn := NewConnectionManager(clientEnd, clientEnd, 0)
	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := conn.Receive(); err == nil {
		t.Fatal("Receive after Close should fail")
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		addr    string
		network string
		target  string
		wantErr bool
	}{
		{addr: "tcp://127.0.0.1:5755", network: "tcp", target: "127.0.0.1:5755"},
		{addr: "unix:///run/redub.sock", network: "unix", target: "/run/redub.sock"},
		{addr: "ipc:///tmp/redub", network: "unix", target: "/tmp/redub"},
		{addr: "127.0.0.1:5755", wantErr: true},
		{addr: "udp://127.0.0.1:5755", wantErr: true},
	}
	for _, tc := range cases {
		network, target, err := splitEndpoint(tc.addr)
		if tc.wantErr {
			if err == nil {
				t.Errorf("splitEndpoint(%q) succeeded, want error", tc.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitEndpoint(%q): %v", tc.addr, err)
			continue
		}
		if network != tc.network || target != tc.target {
			t.Errorf("splitEndpoint(%q) = %s,%s want %s,%s", tc.addr, network, target, tc.network, tc.target)
		}
	}
}

func TestPendingTableSweep(t *testing.T) {
	table := newPendingTable()
	base := time.Now()
	table.now = func() time.Time { return base }

	stale := table.add("stale", TypeTranslate)
	base = base.Add(30 * time.Second)
	fresh := table.add("fresh", TypePing)
	base = base.Add(40 * time.Second)

	if expired := table.sweep(time.Minute); expired != 1 {
		t.Fatalf("sweep expired %d, want 1", expired)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := stale.Wait(ctx); !errors.Is(err, services.ErrTimeout) {
		t.Errorf("stale request error = %v, want timeout", err)
	}
	if table.size() != 1 {
		t.Errorf("table size = %d, want 1", table.size())
	}
	if !table.resolve("fresh", Envelope{Header: []byte(`{"type":"pong"}`)}) {
		t.Error("fresh request should still resolve")
	}
	_ = fresh
}

// memorySender records envelopes instead of hitting a socket.
type memorySender struct {
	mu   sync.Mutex
	sent []Envelope
	err  error
}

func (s *memorySender) Send(env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *memorySender) last() Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

func newTestDispatcher(t *testing.T, conn sender, inlineLimit int) *Dispatcher {
	t.Helper()
	breaker := NewBreaker(BreakerConfig{MaxRetries: 1, WindowSize: 10, MinSamples: 10}, nil)
	return NewDispatcher(conn, breaker, inlineLimit, nil)
}

func TestDispatcherValidation(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 0)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload Payload
	}{
		{name: "translate without text", payload: &TranslateRequest{Meta: Meta{Type: TypeTranslate}, TargetLanguages: []string{"es"}}},
		{name: "translate without targets", payload: &TranslateRequest{Meta: Meta{Type: TypeTranslate}, Text: "hola"}},
		{name: "voice without language", payload: &VoiceAPIRequest{Meta: Meta{Type: TypeVoiceAPI}, Text: "hi"}},
		{name: "analyze without audio", payload: &VoiceAPIRequest{Meta: Meta{Type: TypeVoiceAPI}, Operation: VoiceOpAnalyze}},
		{name: "verify without speaker or reference", payload: &VoiceAPIRequest{Meta: Meta{Type: TypeVoiceAPI}, Operation: VoiceOpVerify, InlineAudio: "AAAA"}},
		{name: "unknown voice operation", payload: &VoiceAPIRequest{Meta: Meta{Type: TypeVoiceAPI}, Operation: "forecast", InlineAudio: "AAAA"}},
		{name: "profile without speaker", payload: &VoiceProfileRequest{Meta: Meta{Type: TypeVoiceProfile}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Submit(ctx, tc.payload); !errors.Is(err, services.ErrInvalidRequest) {
				t.Fatalf("Submit error = %v, want invalid request", err)
			}
		})
	}
	if len(conn.sent) != 0 {
		t.Errorf("invalid requests reached the wire: %d envelopes", len(conn.sent))
	}
}

func TestDispatcherRejectsAudioRequestsWithoutAudio(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 64)
	ctx := context.Background()

	if _, _, err := d.ProcessAudio(ctx, AudioProcessRequest{TargetLanguages: []string{"es"}}, nil, nil); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("ProcessAudio error = %v, want invalid request", err)
	}
	if _, err := d.TranscribeOnly(ctx, TranscribeOnlyRequest{}, nil); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("TranscribeOnly error = %v, want invalid request", err)
	}
	if _, _, err := d.BuildVoiceProfile(ctx, VoiceProfileRequest{SpeakerID: "s1"}, nil); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("BuildVoiceProfile error = %v, want invalid request", err)
	}
	if len(conn.sent) != 0 {
		t.Errorf("audio-less requests reached the wire: %d envelopes", len(conn.sent))
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d, want 0", d.Pending())
	}
}

func TestDispatcherAssignsCorrelationIDs(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 0)
	ctx := context.Background()

	first, err := d.Submit(ctx, &TranslateRequest{Meta: Meta{Type: TypeTranslate}, Text: "hello", TargetLanguages: []string{"es"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := d.Submit(ctx, &TranslateRequest{Meta: Meta{Type: TypeTranslate}, Text: "world", TargetLanguages: []string{"es"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.CorrelationID == "" || first.CorrelationID == second.CorrelationID {
		t.Errorf("correlation ids not unique: %q vs %q", first.CorrelationID, second.CorrelationID)
	}
	if d.Pending() != 2 {
		t.Errorf("pending = %d, want 2", d.Pending())
	}
	stats := d.Stats()
	if stats[TypeTranslate] != 2 {
		t.Errorf("translate count = %d, want 2", stats[TypeTranslate])
	}
	env := conn.last()
	meta, err := env.Meta()
	if err != nil {
		t.Fatalf("sent envelope meta: %v", err)
	}
	if meta.CorrelationID != second.CorrelationID {
		t.Errorf("wire correlation id = %q, want %q", meta.CorrelationID, second.CorrelationID)
	}
}

func TestDispatcherAudioFraming(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 16)

	small := []byte{1, 2, 3}
	var inline string
	meta := Meta{Type: TypeTranscribeOnly}
	if frames := d.attachAudio(&meta, &inline, small); frames != nil {
		t.Errorf("small audio should inline, got %d frames", len(frames))
	}
	if inline == "" {
		t.Error("small audio inline field empty")
	}

	large := make([]byte, 64)
	inline = ""
	meta = Meta{Type: TypeTranscribeOnly}
	frames := d.attachAudio(&meta, &inline, large)
	if len(frames) != 1 {
		t.Fatalf("large audio frames = %d, want 1", len(frames))
	}
	if inline != "" {
		t.Error("large audio should not inline")
	}
	if meta.FrameMap == nil || meta.FrameMap.Audio != 1 || meta.FrameMap.AudioSize != 64 {
		t.Errorf("frame map = %+v", meta.FrameMap)
	}
}

func TestDispatcherSendFailureFailsPending(t *testing.T) {
	conn := &memorySender{err: errors.New("socket gone")}
	d := newTestDispatcher(t, conn, 0)
	if _, err := d.Submit(context.Background(), &PingRequest{Meta: Meta{Type: TypePing}}); err == nil {
		t.Fatal("Submit should surface send failure")
	}
	if d.Pending() != 0 {
		t.Errorf("pending = %d after failed send, want 0", d.Pending())
	}
}

// chanReceiver feeds envelopes to the router from a channel.
type chanReceiver struct {
	ch chan Envelope
}

func (r *chanReceiver) Receive() (Envelope, error) {
	env, ok := <-r.ch
	if !ok {
		return Envelope{}, services.Wrap(services.ErrTransport, "test", "receive", "closed", net.ErrClosed)
	}
	return env, nil
}

func TestRouterResolvesPendingRequest(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 0)
	recv := &chanReceiver{ch: make(chan Envelope, 4)}
	router := NewRouter(recv, d, time.Minute, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routerDone := make(chan error, 1)
	go func() { routerDone <- router.Run(ctx) }()

	pending, err := d.Submit(ctx, &TranslateRequest{Meta: Meta{Type: TypeTranslate}, Text: "hello", TargetLanguages: []string{"es"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	recv.ch <- Envelope{Header: []byte(
		`{"type":"translate_result","correlation_id":"` + pending.CorrelationID + `","translations":{"es":"hola"}}`)}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	env, err := pending.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	var result TranslateResult
	if err := env.Decode(&result); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if result.Translations["es"] != "hola" {
		t.Errorf("translations = %v", result.Translations)
	}

	cancel()
	close(recv.ch)
	select {
	case err := <-routerDone:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("router did not stop")
	}
}

func TestRouterDispatchesEvents(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 0)
	recv := &chanReceiver{ch: make(chan Envelope, 1)}
	router := NewRouter(recv, d, time.Minute, time.Second, nil)

	events := make(chan Envelope, 1)
	router.Subscribe(TypeTranscriptionCompleted, func(env Envelope) { events <- env })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	recv.ch <- Envelope{Header: []byte(`{"type":"transcription_completed","correlation_id":"nobody-waiting"}`)}
	select {
	case env := <-events:
		meta, err := env.Meta()
		if err != nil {
			t.Fatalf("event meta: %v", err)
		}
		if meta.Type != TypeTranscriptionCompleted {
			t.Errorf("event type = %s", meta.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
	cancel()
	close(recv.ch)
}

func TestRouterShutdownFailsWaiters(t *testing.T) {
	conn := &memorySender{}
	d := newTestDispatcher(t, conn, 0)
	recv := &chanReceiver{ch: make(chan Envelope)}
	router := NewRouter(recv, d, time.Minute, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()

	pending, err := d.Submit(ctx, &PingRequest{Meta: Meta{Type: TypePing}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	close(recv.ch)
	<-done

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if _, err := pending.Wait(waitCtx); !errors.Is(err, services.ErrTransport) {
		t.Errorf("Wait after shutdown = %v, want transport error", err)
	}
}
