package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"polyglot/room"
)

type fakeTranslator struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeTranslator) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, targetLang)
	f.mu.Unlock()

	if sourceLang == targetLang {
		return text, nil
	}
	if f.fail[targetLang] {
		return "", errors.New("provider down")
	}
	return "[" + targetLang + "] " + text, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeSynth) Synthesize(
	ctx context.Context,
	text, lang string,
) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lang)
	f.mu.Unlock()

	if f.fail[lang] {
		return nil, errors.New("synth down")
	}
	return []byte("mp3:" + lang), nil
}

type fakeStore struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeStore) Put(
	ctx context.Context,
	key string,
	data []byte,
	contentType string,
) (string, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return "https://audio.test/" + key, nil
}

type fakeConn struct {
	mu       sync.Mutex
	messages []any
	err      error
}

func (f *fakeConn) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeConn) transcripts() []TranscriptMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TranscriptMessage
	for _, m := range f.messages {
		if tm, ok := m.(TranscriptMessage); ok {
			out = append(out, tm)
		}
	}
	return out
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func testRoom() (*room.Registry, *fakeConn, *fakeConn, *fakeConn) {
	rooms := room.NewRegistry()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	rooms.Join("conf1", &room.Participant{
		SessionID: "a", Name: "Alice",
		SpeakLang: "en", HearLang: "en", Conn: a,
	})
	rooms.Join("conf1", &room.Participant{
		SessionID: "b", Name: "Bob",
		SpeakLang: "es", HearLang: "en", Conn: b,
	})
	rooms.Join("conf1", &room.Participant{
		SessionID: "c", Name: "Carol",
		SpeakLang: "fr", HearLang: "fr", Conn: c,
	})
	return rooms, a, b, c
}

func segmentFromAlice() Segment {
	return Segment{
		Speaker:    "Alice",
		SourceLang: "en",
		Text:       "Hello world",
		Flushed:    time.Now(),
	}
}

func TestBroadcastFanOut(t *testing.T) {
	rooms, a, b, c := testRoom()
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	audio := &fakeStore{}
	bc := NewBroadcaster(rooms, translator, synth, audio, testLogger())

	bc.Broadcast(context.Background(), "conf1", segmentFromAlice())

	// Only fr needs translation: Alice and Bob both hear the source
	// language.
	if len(translator.calls) != 1 || translator.calls[0] != "fr" {
		t.Fatalf("translator calls = %v, want [fr]", translator.calls)
	}

	// Audio for source plus targets.
	if len(synth.calls) != 2 {
		t.Fatalf("synth calls = %v, want en and fr", synth.calls)
	}

	for name, conn := range map[string]*fakeConn{
		"Alice": a, "Bob": b, "Carol": c,
	} {
		msgs := conn.transcripts()
		if len(msgs) != 1 {
			t.Fatalf(
				"%s got %d transcript messages, want 1",
				name, len(msgs),
			)
		}
	}

	for _, conn := range []*fakeConn{a, b} {
		msg := conn.transcripts()[0]
		if msg.Translation != "Hello world" {
			t.Errorf(
				"en listener translation = %q, want original",
				msg.Translation,
			)
		}
		if !strings.Contains(msg.AudioURL, "output/en-") {
			t.Errorf("en listener audio = %q, want en object", msg.AudioURL)
		}
	}

	msg := c.transcripts()[0]
	if msg.Translation != "[fr] Hello world" {
		t.Errorf("fr listener translation = %q", msg.Translation)
	}
	if !strings.Contains(msg.AudioURL, "output/fr-") {
		t.Errorf("fr listener audio = %q, want fr object", msg.AudioURL)
	}
	if msg.Speaker != "Alice" || msg.SpeakerLanguage != "en" ||
		msg.Original != "Hello world" || msg.SourceLanguage != "en" {
		t.Errorf("message metadata wrong: %+v", msg)
	}
}

func TestBroadcastTranslationFailureFallsBack(t *testing.T) {
	rooms, _, _, c := testRoom()
	translator := &fakeTranslator{fail: map[string]bool{"fr": true}}
	synth := &fakeSynth{}
	bc := NewBroadcaster(rooms, translator, synth, &fakeStore{}, testLogger())

	bc.Broadcast(context.Background(), "conf1", segmentFromAlice())

	msgs := c.transcripts()
	if len(msgs) != 1 {
		t.Fatalf("fr listener got %d messages, want 1", len(msgs))
	}
	if msgs[0].Translation != "Hello world" {
		t.Errorf(
			"fallback translation = %q, want original",
			msgs[0].Translation,
		)
	}
}

func TestBroadcastSynthesisFailureYieldsEmptyURL(t *testing.T) {
	rooms, _, _, c := testRoom()
	translator := &fakeTranslator{}
	synth := &fakeSynth{fail: map[string]bool{"fr": true}}
	bc := NewBroadcaster(rooms, translator, synth, &fakeStore{}, testLogger())

	bc.Broadcast(context.Background(), "conf1", segmentFromAlice())

	msgs := c.transcripts()
	if len(msgs) != 1 {
		t.Fatalf("fr listener got %d messages, want 1", len(msgs))
	}
	if msgs[0].AudioURL != "" {
		t.Errorf("audio URL = %q, want empty on synth failure", msgs[0].AudioURL)
	}
	if msgs[0].Translation != "[fr] Hello world" {
		t.Errorf("translation should be unaffected: %q", msgs[0].Translation)
	}
}

type hangingTranslator struct{}

func (hangingTranslator) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type hangingSynth struct{}

func (hangingSynth) Synthesize(
	ctx context.Context,
	text, lang string,
) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBroadcastBoundsProviderWaits(t *testing.T) {
	rooms, a, _, c := testRoom()
	bc := NewBroadcaster(
		rooms, hangingTranslator{}, hangingSynth{}, &fakeStore{}, testLogger(),
	)
	bc.translateTimeout = 50 * time.Millisecond
	bc.speakTimeout = 50 * time.Millisecond

	start := time.Now()
	bc.Broadcast(context.Background(), "conf1", segmentFromAlice())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("broadcast stalled on hung providers: took %v", elapsed)
	}

	// Every recipient still gets the message, degraded per policy.
	for name, conn := range map[string]*fakeConn{"Alice": a, "Carol": c} {
		msgs := conn.transcripts()
		if len(msgs) != 1 {
			t.Fatalf("%s got %d messages, want 1", name, len(msgs))
		}
		if msgs[0].Translation != "Hello world" {
			t.Errorf(
				"%s translation = %q, want original fallback",
				name, msgs[0].Translation,
			)
		}
		if msgs[0].AudioURL != "" {
			t.Errorf(
				"%s audio = %q, want empty on hung synthesis",
				name, msgs[0].AudioURL,
			)
		}
	}
}

func TestBroadcastDeliveryFailureIsIsolated(t *testing.T) {
	rooms := room.NewRegistry()
	broken := &fakeConn{err: errors.New("closed")}
	ok := &fakeConn{}
	rooms.Join("conf1", &room.Participant{
		SessionID: "a", Name: "Alice",
		SpeakLang: "en", HearLang: "en", Conn: broken,
	})
	rooms.Join("conf1", &room.Participant{
		SessionID: "b", Name: "Bob",
		SpeakLang: "en", HearLang: "en", Conn: ok,
	})
	bc := NewBroadcaster(
		rooms, &fakeTranslator{}, &fakeSynth{}, &fakeStore{}, testLogger(),
	)

	bc.Broadcast(context.Background(), "conf1", segmentFromAlice())

	if msgs := ok.transcripts(); len(msgs) != 1 {
		t.Fatalf(
			"healthy recipient got %d messages, want 1 despite peer failure",
			len(msgs),
		)
	}
}

func TestBroadcastEmptyRoomIsNoop(t *testing.T) {
	rooms := room.NewRegistry()
	translator := &fakeTranslator{}
	synth := &fakeSynth{}
	bc := NewBroadcaster(rooms, translator, synth, &fakeStore{}, testLogger())

	bc.Broadcast(context.Background(), "ghost", segmentFromAlice())

	if len(translator.calls) != 0 || len(synth.calls) != 0 {
		t.Fatal("providers were called for an empty room")
	}
}

func TestBroadcastManyDistinctLanguages(t *testing.T) {
	rooms := room.NewRegistry()
	conns := make(map[string]*fakeConn)
	for i, lang := range []string{"en", "es", "fr", "hi", "es"} {
		conn := &fakeConn{}
		id := fmt.Sprintf("s%d", i)
		conns[id] = conn
		rooms.Join("big", &room.Participant{
			SessionID: id, Name: "U" + id,
			SpeakLang: lang, HearLang: lang, Conn: conn,
		})
	}
	translator := &fakeTranslator{}
	bc := NewBroadcaster(
		rooms, translator, &fakeSynth{}, &fakeStore{}, testLogger(),
	)

	bc.Broadcast(context.Background(), "big", segmentFromAlice())

	// es appears twice among listeners but is translated once.
	if len(translator.calls) != 3 {
		t.Fatalf(
			"translator calls = %v, want one each for es, fr, hi",
			translator.calls,
		)
	}
	for id, conn := range conns {
		if got := len(conn.transcripts()); got != 1 {
			t.Errorf("%s got %d messages, want exactly 1", id, got)
		}
	}
}

func TestParticipantsBroadcast(t *testing.T) {
	rooms, a, _, _ := testRoom()
	bc := NewBroadcaster(
		rooms, &fakeTranslator{}, &fakeSynth{}, &fakeStore{}, testLogger(),
	)

	bc.Participants("conf1")

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(a.messages))
	}
	msg, ok := a.messages[0].(ParticipantsMessage)
	if !ok {
		t.Fatalf("got %T, want ParticipantsMessage", a.messages[0])
	}
	if msg.Type != "participants" {
		t.Errorf("type = %q", msg.Type)
	}
	want := []ParticipantInfo{
		{UserName: "Alice", SpeakLanguage: "en", HearLanguage: "en"},
		{UserName: "Bob", SpeakLanguage: "es", HearLanguage: "en"},
		{UserName: "Carol", SpeakLanguage: "fr", HearLanguage: "fr"},
	}
	if len(msg.Participants) != len(want) {
		t.Fatalf("got %d participants, want %d", len(msg.Participants), len(want))
	}
	for i := range want {
		if msg.Participants[i] != want[i] {
			t.Errorf(
				"participants[%d] = %+v, want %+v",
				i, msg.Participants[i], want[i],
			)
		}
	}
}
