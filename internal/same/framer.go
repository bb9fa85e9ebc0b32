package same

import "strings"

// minPreamble is how many consecutive preamble bytes must be seen before
// characters are read. Random bits pass a 32 bit pattern rarely enough.
const minPreamble = 4

type burstKind int

const (
	burstPartial   burstKind = iota // preamble without a usable body
	burstHeader                     // complete ZCZC header
	burstMalformed                  // header body broken by an invalid byte
	burstEOM                        // NNNN
)

// burst is one framed transmission.
type burst struct {
	kind  burstKind
	text  string
	start int // sample index of the first preamble bit
	end   int // sample index of the last character bit
}

// frame locates preamble runs in bits and reads the ASCII body following
// each, least significant bit first.
func frame(bits []bit) []burst {
	var bursts []burst
	for i := 0; i+8 <= len(bits); {
		if byteAt(bits, i) != PreambleByte {
			i++
			continue
		}

		j, run := i, 0
		for j+8 <= len(bits) && byteAt(bits, j) == PreambleByte {
			j += 8
			run++
		}
		if run < minPreamble {
			i++
			continue
		}

		b, next := readBody(bits, i, j)
		bursts = append(bursts, b)
		i = next
	}
	return bursts
}

// readBody reads characters from bit offset j until the body is complete or
// the carrier is lost.
func readBody(bits []bit, start, j int) (burst, int) {
	var (
		text      []byte
		truncated bool
	)
	for {
		if j+8 > len(bits) {
			truncated = true
			break
		}
		c := byteAt(bits, j)
		if c&0x80 != 0 || c < 0x20 {
			break
		}
		text = append(text, c)
		j += 8
		if bodyComplete(text) || !plausiblePrefix(text) || len(text) >= MaxHeaderLength {
			break
		}
	}

	b := burst{
		text:  string(text),
		start: bits[start].sample,
		end:   bits[max(j-1, start)].sample,
	}
	switch {
	case b.text == eomMarker:
		b.kind = burstEOM
	case bodyComplete(text):
		b.kind = burstHeader
	case strings.HasPrefix(b.text, "ZCZC") && !truncated:
		// Broken mid header while the capture continued.
		b.kind = burstMalformed
	}
	return b, j
}

// bodyComplete reports whether text is a full header or end of message
// marker. A header ends with the dash after the station identifier, the
// third dash following the purge separator.
func bodyComplete(text []byte) bool {
	s := string(text)
	if s == eomMarker {
		return true
	}
	if !strings.HasPrefix(s, headerPrefix) {
		return false
	}
	_, tail, ok := strings.Cut(s, "+")
	return ok && strings.Count(tail, "-") == 3
}

// plausiblePrefix reports whether text can still become a header or an end
// of message marker.
func plausiblePrefix(text []byte) bool {
	s := string(text)
	if len(s) <= 4 {
		return strings.HasPrefix("ZCZC", s) || strings.HasPrefix(eomMarker, s)
	}
	return strings.HasPrefix(s, headerPrefix)
}

func byteAt(bits []bit, i int) byte {
	var c byte
	for k := range 8 {
		c |= bits[i+k].value << k
	}
	return c
}
