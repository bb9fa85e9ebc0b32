package same

import (
	"time"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// Defaults for Config fields left zero.
const (
	DefaultSampleRate    = 16000
	DefaultVoteThreshold = 2
	DefaultSettleTime    = 1500 * time.Millisecond
)

// Config configures a Decoder.
type Config struct {
	SampleRate int // rate of the PCM passed to Decode

	// VoteThreshold is how many byte-identical header bursts make a high
	// confidence message. Clamped to [1, 3].
	VoteThreshold int

	// RequireAgreement reports uncorroborated headers as PartialBurst
	// instead of low confidence messages.
	RequireAgreement bool

	// SettleTime is how long after the last header burst a snapshot must
	// extend before no further repeats are expected.
	SettleTime time.Duration

	// Now supplies the reference time for issue year resolution.
	Now func() time.Time
}

// Decoder decodes SAME headers from PCM snapshots. It holds no state between
// calls and is safe for concurrent use.
type Decoder struct {
	cfg Config
}

// NewDecoder returns a decoder for cfg.
func NewDecoder(cfg Config) *Decoder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.VoteThreshold <= 0 {
		cfg.VoteThreshold = DefaultVoteThreshold
	}
	cfg.VoteThreshold = min(cfg.VoteThreshold, 3)
	if cfg.SettleTime <= 0 {
		cfg.SettleTime = DefaultSettleTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Decoder{cfg: cfg}
}

// SampleRate returns the PCM rate Decode expects.
func (d *Decoder) SampleRate() int {
	return d.cfg.SampleRate
}

// Decode demodulates pcm, frames every burst it contains and reconciles the
// header bursts by majority vote.
func (d *Decoder) Decode(pcm []float32) Result {
	bits := newDemodulator(d.cfg.SampleRate).process(pcm)
	bursts := frame(bits)
	return d.reconcile(bursts, len(pcm))
}

type vote struct {
	msg   *Message
	count int
}

func (d *Decoder) reconcile(bursts []burst, samples int) Result {
	var (
		res      Result
		votes    []*vote
		partial  bool
		firstErr error
		valid    int
		lastEnd  int
	)
	byRaw := make(map[string]*vote)

	ref := d.cfg.Now()
	for _, b := range bursts {
		switch b.kind {
		case burstEOM:
			res.EOMBursts++
			res.EOMEnd = max(res.EOMEnd, b.end)
		case burstPartial:
			partial = true
		case burstMalformed:
			res.MalformedBursts++
			if firstErr == nil {
				firstErr = fieldError("layout", "header burst lost mid transmission after %q", b.text)
			}
		case burstHeader:
			lastEnd = max(lastEnd, b.end)
			if v, ok := byRaw[b.text]; ok {
				v.count++
				valid++
				continue
			}
			msg, err := ParseHeader(b.text, ref)
			if err != nil {
				res.MalformedBursts++
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			v := &vote{msg: msg, count: 1}
			byRaw[b.text] = v
			votes = append(votes, v)
			valid++
		}
	}

	res.HeaderEnd = lastEnd
	res.Settled = samples-lastEnd >= int(d.cfg.SettleTime.Seconds()*float64(d.cfg.SampleRate))

	if len(votes) == 0 {
		switch {
		case firstErr != nil:
			res.Kind = DecodeError
			res.Err = errors.New(firstErr).
				Component(ComponentSAME).
				Category(errors.CategoryDecode).
				Context("resource", "same_header").
				Context("malformed_bursts", res.MalformedBursts).
				Build()
		case partial:
			res.Kind = PartialBurst
		default:
			res.Kind = NoSignal
		}
		return res
	}

	// Largest group wins, ties to the earliest.
	best := votes[0]
	for _, v := range votes[1:] {
		if v.count > best.count {
			best = v
		}
	}

	confidence := ConfidenceLow
	if best.count >= d.cfg.VoteThreshold {
		confidence = ConfidenceHigh
	}
	if confidence == ConfidenceLow && d.cfg.RequireAgreement {
		res.Kind = PartialBurst
		return res
	}

	msg := *best.msg
	msg.Confidence = confidence
	msg.Bursts = valid
	msg.Agreeing = best.count
	res.Kind = MessageFound
	res.Message = &msg
	return res
}
