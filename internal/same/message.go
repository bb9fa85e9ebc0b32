// Package same decodes and encodes Specific Area Message Encoding bursts,
// the FSK headers that announce Emergency Alert System activations.
package same

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// ComponentSAME identifies errors raised by this package.
const ComponentSAME = "same"

// ErrDecode is the sentinel every malformed burst error matches.
var ErrDecode = errors.New(nil).
	Component(ComponentSAME).
	Category(errors.CategoryDecode).
	Context("resource", "same_header").
	Build()

// Confidence grades how well a message was corroborated by repeated bursts.
type Confidence string

const (
	ConfidenceHigh Confidence = "high" // enough byte-identical bursts agreed
	ConfidenceLow  Confidence = "low"  // uncorroborated burst
)

// Location is one PSSCCC area code.
type Location struct {
	Subdivision int    `json:"subdivision"` // 0 for the entire county
	State       string `json:"state"`       // two digit FIPS state code, 00 for all
	County      string `json:"county"`      // three digit FIPS county code, 000 for all
}

// String returns the PSSCCC form.
func (l Location) String() string {
	return fmt.Sprintf("%d%s%s", l.Subdivision, l.State, l.County)
}

// Describe returns a readable form such as "OH 003" or "all of OH".
func (l Location) Describe() string {
	state := StateAbbreviation(l.State)
	if l.County == "000" {
		return "all of " + state
	}
	if l.Subdivision != 0 {
		return fmt.Sprintf("%s %s (part %d)", state, l.County, l.Subdivision)
	}
	return state + " " + l.County
}

// Message is a decoded SAME header. Values are never modified after
// decoding.
type Message struct {
	Originator Originator    `json:"originator"`
	Event      string        `json:"event"`
	Locations  []Location    `json:"locations"`
	Purge      time.Duration `json:"purge"`
	Issued     time.Time     `json:"issued"`
	Station    string        `json:"station"`
	Raw        string        `json:"raw"`
	Confidence Confidence    `json:"confidence"`
	Bursts     int           `json:"bursts"`   // valid header bursts observed
	Agreeing   int           `json:"agreeing"` // bursts byte-identical to Raw
}

// Expires returns when the alert should be purged.
func (m Message) Expires() time.Time {
	return m.Issued.Add(m.Purge)
}

// EventName returns the descriptive event name.
func (m Message) EventName() string {
	return EventName(m.Event)
}

// Significance returns the event significance.
func (m Message) Significance() Significance {
	return EventSignificance(m.Event)
}

// Summary renders a one line description for logs and notifications.
func (m Message) Summary() string {
	areas := make([]string, len(m.Locations))
	for i, l := range m.Locations {
		areas[i] = l.Describe()
	}
	return fmt.Sprintf("%s issued by %s (%s) for %s, valid until %s",
		m.EventName(),
		m.Originator.Name(),
		strings.TrimSpace(m.Station),
		strings.Join(areas, ", "),
		m.Expires().UTC().Format("2006-01-02 15:04 MST"))
}

// Kind is the outcome of decoding one snapshot.
type Kind int

const (
	NoSignal     Kind = iota // no SAME preamble found
	PartialBurst             // preamble without a complete header
	MessageFound             // at least one valid header burst
	DecodeError              // only malformed header bursts
)

func (k Kind) String() string {
	switch k {
	case NoSignal:
		return "no_signal"
	case PartialBurst:
		return "partial_burst"
	case MessageFound:
		return "message"
	case DecodeError:
		return "decode_error"
	}
	return "unknown"
}

// Result is the outcome of Decoder.Decode.
type Result struct {
	Kind    Kind
	Message *Message // set for MessageFound
	Err     error    // set for DecodeError, matches ErrDecode

	EOMBursts       int // end of message bursts seen
	MalformedBursts int

	// HeaderEnd and EOMEnd are the sample offsets where the last header
	// and the last end of message burst end, zero when there is none.
	HeaderEnd int
	EOMEnd    int

	// Settled is false while the snapshot ends so soon after the last
	// burst that further repeats may still arrive.
	Settled bool
}
