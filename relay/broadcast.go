package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"polyglot/etc"
	"polyglot/room"
	"polyglot/store"
	"polyglot/translate"
	"polyglot/tts"
)

const (
	// Provider round-trips are bounded; past the deadline the per-language
	// fallback (original text, empty audio URL) engages.
	translateTimeout = 10 * time.Second
	speakTimeout     = 30 * time.Second
)

// Broadcaster fans one flushed segment out to every current member of a
// room: it translates into each distinct target language, synthesizes and
// stores audio per language, then delivers a personalized message to each
// member. Fan-out is best effort; no single provider or recipient failure
// aborts the rest.
type Broadcaster struct {
	rooms      *room.Registry
	translator translate.Translator
	synth      tts.Synthesizer
	audio      store.AudioStore
	logger     *log.Logger

	translateTimeout time.Duration
	speakTimeout     time.Duration
}

func NewBroadcaster(
	rooms *room.Registry,
	translator translate.Translator,
	synth tts.Synthesizer,
	audio store.AudioStore,
	logger *log.Logger,
) *Broadcaster {
	return &Broadcaster{
		rooms:            rooms,
		translator:       translator,
		synth:            synth,
		audio:            audio,
		logger:           logger,
		translateTimeout: translateTimeout,
		speakTimeout:     speakTimeout,
	}
}

func (b *Broadcaster) Broadcast(
	ctx context.Context,
	roomID string,
	seg Segment,
) {
	members := b.rooms.Members(roomID)
	if len(members) == 0 {
		b.logger.Warn("room not found", "room", roomID)
		return
	}

	b.logger.Info(
		"broadcast",
		"room", roomID,
		"members", len(members),
		"txt", seg.Text,
	)

	// Distinct target languages, minus the speaker's own. The speaker
	// always receives the original.
	targets := make(map[string]bool)
	for _, m := range members {
		if m.HearLang != seg.SourceLang {
			targets[m.HearLang] = true
		}
	}

	translations := map[string]string{
		seg.SourceLang: seg.Text,
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for lang := range targets {
		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, b.translateTimeout)
			defer cancel()
			text, err := b.translator.Translate(
				tctx,
				seg.Text,
				seg.SourceLang,
				lang,
			)
			if err != nil {
				b.logger.Error(
					"translation failed",
					"lang", lang,
					"error", err,
				)
				text = seg.Text
			}
			mu.Lock()
			translations[lang] = text
			mu.Unlock()
		}(lang)
	}
	wg.Wait()

	// Audio for the source language plus every target, keyed by language.
	audioURLs := make(map[string]string, len(translations))
	for lang, text := range translations {
		wg.Add(1)
		go func(lang, text string) {
			defer wg.Done()
			url := b.speak(ctx, text, lang)
			mu.Lock()
			audioURLs[lang] = url
			mu.Unlock()
		}(lang, text)
	}
	wg.Wait()

	for _, m := range members {
		text, ok := translations[m.HearLang]
		if !ok {
			text = seg.Text
		}

		msg := TranscriptMessage{
			Type:            "transcript",
			Speaker:         seg.Speaker,
			SpeakerLanguage: seg.SourceLang,
			Original:        seg.Text,
			SourceLanguage:  seg.SourceLang,
			Translation:     text,
			AudioURL:        audioURLs[m.HearLang],
		}

		if err := m.Conn.Send(msg); err != nil {
			b.logger.Error(
				"failed to send transcript",
				"to", m.Name,
				"error", err,
			)
			continue
		}

		b.logger.Debug("sent", "to", m.Name, "lang", m.HearLang)
	}
}

// speak synthesizes text and stores the audio, returning the object URL.
// Any failure degrades to an empty URL; the transcript still goes out.
func (b *Broadcaster) speak(ctx context.Context, text, lang string) string {
	if text == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, b.speakTimeout)
	defer cancel()

	data, err := b.synth.Synthesize(ctx, text, lang)
	if err != nil {
		b.logger.Error("speech failed", "lang", lang, "error", err)
		return ""
	}
	if len(data) == 0 {
		return ""
	}

	key := fmt.Sprintf(
		"output/%s-%d-%s.mp3",
		lang,
		time.Now().UnixMilli(),
		etc.NewFreshID(),
	)

	url, err := b.audio.Put(ctx, key, data, "audio/mpeg")
	if err != nil {
		b.logger.Error("audio upload failed", "key", key, "error", err)
		return ""
	}

	return url
}

// Participants sends the current member list, in join order, to everyone in
// the room. Sending to an empty or deleted room is a no-op.
func (b *Broadcaster) Participants(roomID string) {
	members := b.rooms.Members(roomID)
	if len(members) == 0 {
		return
	}

	infos := make([]ParticipantInfo, len(members))
	for i, m := range members {
		infos[i] = ParticipantInfo{
			UserName:      m.Name,
			SpeakLanguage: m.SpeakLang,
			HearLanguage:  m.HearLang,
		}
	}

	msg := ParticipantsMessage{
		Type:         "participants",
		Participants: infos,
	}

	for _, m := range members {
		if err := m.Conn.Send(msg); err != nil {
			b.logger.Error(
				"failed to send participant update",
				"to", m.Name,
				"error", err,
			)
		}
	}
}
