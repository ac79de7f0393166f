package relay

import (
	"strings"
	"time"

	"polyglot/stt"
)

const (
	// FlushInterval is the longest a partial buffer may sit before the next
	// final result forces a flush.
	FlushInterval = 10 * time.Second
	// FlushLength is the accumulated text length beyond which a flush fires.
	FlushLength = 200
)

type Segment struct {
	Speaker    string
	SourceLang string
	Text       string
	Flushed    time.Time
}

type Clock func() time.Time

// Aggregator batches one speaker's final recognition results into segments,
// trading latency for fewer, larger broadcasts. Partial results never touch
// the buffer. Not safe for concurrent use; it is owned by the session's
// consume loop.
type Aggregator struct {
	speaker    string
	sourceLang string
	buf        string
	lastFlush  time.Time
	now        Clock
	flush      func(Segment)
}

func NewAggregator(
	speaker, sourceLang string,
	now Clock,
	flush func(Segment),
) *Aggregator {
	return &Aggregator{
		speaker:    speaker,
		sourceLang: sourceLang,
		now:        now,
		lastFlush:  now(),
		flush:      flush,
	}
}

// Observe appends a final result to the buffer and flushes once the elapsed
// or length threshold is crossed. Flushing emits the segment and resets the
// buffer and timer together, so no text is lost or sent twice.
func (a *Aggregator) Observe(res stt.Result) {
	if !res.IsFinal {
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return
	}

	if a.buf == "" {
		a.buf = text
	} else {
		a.buf += " " + text
	}

	now := a.now()
	if now.Sub(a.lastFlush) <= FlushInterval && len(a.buf) <= FlushLength {
		return
	}

	seg := Segment{
		Speaker:    a.speaker,
		SourceLang: a.sourceLang,
		Text:       strings.TrimSpace(a.buf),
		Flushed:    now,
	}

	a.buf = ""
	a.lastFlush = now

	a.flush(seg)
}
