package internal

import "strings"

// DefaultSpecialMarkers are the control strings some backends leak into
// their token streams. Order matters: longer overlapping markers must be
// declared before shorter ones so prefix matching never truncates them.
var DefaultSpecialMarkers = []string{
	"<|end_of_text|>",
	"<|endoftext|>",
	"<|im_start|>",
	"<|im_end|>",
	"<|eot_id|>",
	"<|eom_id|>",
	"</s>",
}

const (
	// DefaultReasoningOpen and DefaultReasoningClose delimit a model's
	// internal reasoning span, which is never shown to the user.
	DefaultReasoningOpen  = "<think>"
	DefaultReasoningClose = "</think>"
)

// MarkerEraser removes special marker strings from an incrementally
// produced text stream. Markers may arrive split across any number of
// chunks, so the eraser holds back any buffer tail that could still grow
// into a full marker.
type MarkerEraser struct {
	markers []string
	buf     string
}

// NewMarkerEraser creates an eraser for the given marker list. Matching
// follows declaration order: the first marker that matches wins.
func NewMarkerEraser(markers []string) *MarkerEraser {
	return &MarkerEraser{markers: markers}
}

// Write consumes one input chunk and returns the text that is now safe to
// emit. Text withheld as a potential partial marker is emitted (or erased)
// by a later Write or by Flush.
func (e *MarkerEraser) Write(chunk string) string {
	e.buf += chunk
	var out strings.Builder
	for e.buf != "" {
		if m, ok := e.markerAtStart(); ok {
			e.buf = e.buf[len(m):]
			continue
		}
		if e.partialMarkerAtStart() {
			break
		}
		out.WriteByte(e.buf[0])
		e.buf = e.buf[1:]
	}
	return out.String()
}

// Flush emits the held-back buffer at end of stream, erasing any complete
// marker occurrences inside it. A second Flush returns "".
func (e *MarkerEraser) Flush() string {
	out := e.buf
	e.buf = ""
	for _, m := range e.markers {
		out = strings.ReplaceAll(out, m, "")
	}
	return out
}

// Reset clears the buffer for reuse across generations.
func (e *MarkerEraser) Reset() {
	e.buf = ""
}

func (e *MarkerEraser) markerAtStart() (string, bool) {
	for _, m := range e.markers {
		if strings.HasPrefix(e.buf, m) {
			return m, true
		}
	}
	return "", false
}

// partialMarkerAtStart reports whether the whole buffer is a strict prefix
// of some marker, i.e. it could still grow into a full match.
func (e *MarkerEraser) partialMarkerAtStart() bool {
	for _, m := range e.markers {
		if len(e.buf) < len(m) && strings.HasPrefix(m, e.buf) {
			return true
		}
	}
	return false
}

type stripperState int

const (
	stateLookingForOpen stripperState = iota
	stateInsideSpan
	statePassThrough
)

// ReasoningStripper removes a delimited reasoning span from a streamed
// model response. It is a three-state machine: before any output it looks
// for the open marker; inside a span it discards everything until the
// close marker; after that (or once ordinary text appears first) it passes
// input through verbatim.
type ReasoningStripper struct {
	open  string
	close string
	state stripperState
	buf   string
}

// NewReasoningStripper creates a stripper for the given span markers.
func NewReasoningStripper(open, close string) *ReasoningStripper {
	return &ReasoningStripper{open: open, close: close}
}

// Write consumes one input chunk and returns displayable text. Inside a
// reasoning span nothing is emitted.
func (r *ReasoningStripper) Write(chunk string) string {
	switch r.state {
	case statePassThrough:
		return chunk
	case stateLookingForOpen:
		r.buf += chunk
		if strings.HasPrefix(r.buf, r.open) {
			rest := r.buf[len(r.open):]
			r.buf = ""
			r.state = stateInsideSpan
			return r.Write(rest)
		}
		if len(r.buf) < len(r.open) && strings.HasPrefix(r.open, r.buf) {
			// Could still grow into the open marker; emit nothing yet.
			return ""
		}
		// The response does not begin with a reasoning span, so it will
		// not contain one: anything later that looks like a marker is
		// ordinary output. This keeps output independent of how the
		// stream was chunked.
		out := r.buf
		r.buf = ""
		r.state = statePassThrough
		return out
	default: // stateInsideSpan
		r.buf += chunk
		if idx := strings.Index(r.buf, r.close); idx >= 0 {
			after := r.buf[idx+len(r.close):]
			r.buf = ""
			r.state = statePassThrough
			return after
		}
		// Discard span content, keeping only a tail that could still
		// complete the close marker.
		hold := longestSuffixPrefix(r.buf, r.close)
		r.buf = r.buf[len(r.buf)-hold:]
		return ""
	}
}

// Flush ends the stream. Text buffered while looking for an open marker
// was ordinary output and is emitted; an unterminated reasoning span is
// dropped entirely.
func (r *ReasoningStripper) Flush() string {
	out := ""
	if r.state == stateLookingForOpen {
		out = r.buf
	}
	r.buf = ""
	return out
}

// Reset returns the stripper to its initial state for reuse.
func (r *ReasoningStripper) Reset() {
	r.state = stateLookingForOpen
	r.buf = ""
}

// InsideReasoning reports whether output is currently being withheld
// pending reasoning-span resolution. Callers use it to drive a "thinking"
// indicator.
func (r *ReasoningStripper) InsideReasoning() bool {
	return r.state != statePassThrough
}

// longestSuffixPrefix returns the length of the longest suffix of s that
// is a strict prefix of marker.
func longestSuffixPrefix(s, marker string) int {
	max := len(marker) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(marker, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

// StreamSanitizer chains the marker eraser and the reasoning stripper.
// Feeding a stream through Write calls plus a final Flush produces output
// byte-identical to sanitizing the fully concatenated stream at once,
// regardless of how the input was chunked.
type StreamSanitizer struct {
	eraser   *MarkerEraser
	stripper *ReasoningStripper
}

// NewStreamSanitizer creates a sanitizer with the given marker list and
// reasoning span delimiters.
func NewStreamSanitizer(markers []string, open, close string) *StreamSanitizer {
	return &StreamSanitizer{
		eraser:   NewMarkerEraser(markers),
		stripper: NewReasoningStripper(open, close),
	}
}

// NewDefaultStreamSanitizer creates a sanitizer with the default markers.
func NewDefaultStreamSanitizer() *StreamSanitizer {
	return NewStreamSanitizer(DefaultSpecialMarkers, DefaultReasoningOpen, DefaultReasoningClose)
}

// Write sanitizes one raw chunk and returns displayable text, possibly
// empty while content is withheld.
func (s *StreamSanitizer) Write(chunk string) string {
	return s.stripper.Write(s.eraser.Write(chunk))
}

// Flush drains both stages at end of stream.
func (s *StreamSanitizer) Flush() string {
	out := s.stripper.Write(s.eraser.Flush())
	return out + s.stripper.Flush()
}

// Reset prepares both stages for a new generation.
func (s *StreamSanitizer) Reset() {
	s.eraser.Reset()
	s.stripper.Reset()
}

// InsideReasoning reports whether the stream is still withholding output
// as potential or actual reasoning content.
func (s *StreamSanitizer) InsideReasoning() bool {
	return s.stripper.InsideReasoning()
}
