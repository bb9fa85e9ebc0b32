package same

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/eas-monitor/internal/errors"
)

const (
	headerPrefix = "ZCZC-"
	eomMarker    = "NNNN"

	// MaxHeaderLength is the longest legal header, 31 locations included.
	MaxHeaderLength = 268
	maxLocations    = 31
	stationLength   = 8
)

// fieldError builds a decode error matching ErrDecode.
func fieldError(field, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(ComponentSAME).
		Category(errors.CategoryDecode).
		Context("resource", "same_header").
		Context("field", field).
		Build()
}

// ParseHeader validates a complete header and returns its fields. The year of
// the issue time is not transmitted; it is resolved relative to ref.
func ParseHeader(raw string, ref time.Time) (*Message, error) {
	if !strings.HasPrefix(raw, headerPrefix) {
		return nil, fieldError("prefix", "header does not start with %q", headerPrefix)
	}
	if len(raw) > MaxHeaderLength {
		return nil, fieldError("length", "header is %d characters, limit is %d", len(raw), MaxHeaderLength)
	}

	body := raw[len(headerPrefix):]
	area, tail, ok := strings.Cut(body, "+")
	if !ok {
		return nil, fieldError("purge", "header has no purge time separator")
	}

	parts := strings.Split(area, "-")
	if len(parts) < 3 {
		return nil, fieldError("locations", "header has no location codes")
	}

	msg := &Message{Raw: raw}

	msg.Originator = Originator(parts[0])
	if !msg.Originator.Valid() {
		return nil, fieldError("originator", "unknown originator %q", parts[0])
	}

	msg.Event = parts[1]
	if !KnownEvent(msg.Event) {
		return nil, fieldError("event", "unknown event code %q", parts[1])
	}

	codes := parts[2:]
	if len(codes) > maxLocations {
		return nil, fieldError("locations", "header has %d location codes, limit is %d", len(codes), maxLocations)
	}
	msg.Locations = make([]Location, 0, len(codes))
	for _, code := range codes {
		loc, err := ParseLocation(code)
		if err != nil {
			return nil, err
		}
		msg.Locations = append(msg.Locations, loc)
	}

	// TTTT-JJJHHMM-LLLLLLLL-
	fields := strings.Split(tail, "-")
	if len(fields) != 4 || fields[3] != "" {
		return nil, fieldError("layout", "malformed header trailer %q", tail)
	}

	purge, err := parsePurge(fields[0])
	if err != nil {
		return nil, err
	}
	msg.Purge = purge

	issued, err := parseIssued(fields[1], ref)
	if err != nil {
		return nil, err
	}
	msg.Issued = issued

	station := fields[2]
	if len(station) != stationLength || !printable(station) {
		return nil, fieldError("station", "invalid station identifier %q", station)
	}
	msg.Station = station

	return msg, nil
}

// ParseLocation decodes one PSSCCC location code.
func ParseLocation(code string) (Location, error) {
	if len(code) != 6 || !digits(code) {
		return Location{}, fieldError("locations", "invalid location code %q", code)
	}
	return Location{
		Subdivision: int(code[0] - '0'),
		State:       code[1:3],
		County:      code[3:6],
	}, nil
}

func parsePurge(s string) (time.Duration, error) {
	if len(s) != 4 || !digits(s) {
		return 0, fieldError("purge", "invalid purge time %q", s)
	}
	hours, _ := strconv.Atoi(s[:2])
	minutes, _ := strconv.Atoi(s[2:])
	if minutes >= 60 {
		return 0, fieldError("purge", "invalid purge time %q", s)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// parseIssued decodes JJJHHMM in UTC. Of the candidate years around ref the
// one giving the issue time closest to ref wins, so headers sent just before
// new year resolve to the old year.
func parseIssued(s string, ref time.Time) (time.Time, error) {
	if len(s) != 7 || !digits(s) {
		return time.Time{}, fieldError("issued", "invalid issue time %q", s)
	}
	day, _ := strconv.Atoi(s[:3])
	hour, _ := strconv.Atoi(s[3:5])
	minute, _ := strconv.Atoi(s[5:])
	if day < 1 || day > 366 || hour > 23 || minute > 59 {
		return time.Time{}, fieldError("issued", "issue time %q out of range", s)
	}

	ref = ref.UTC()
	var (
		best  time.Time
		found bool
	)
	for _, year := range []int{ref.Year() - 1, ref.Year(), ref.Year() + 1} {
		if day == 366 && !leapYear(year) {
			continue
		}
		t := time.Date(year, time.January, day, hour, minute, 0, 0, time.UTC)
		if !found || absDuration(t.Sub(ref)) < absDuration(best.Sub(ref)) {
			best, found = t, true
		}
	}
	return best, nil
}

// FormatHeader renders m in wire form. Raw is ignored.
func FormatHeader(m Message) string {
	var b strings.Builder
	b.WriteString(headerPrefix)
	b.WriteString(string(m.Originator))
	b.WriteByte('-')
	b.WriteString(m.Event)
	for _, l := range m.Locations {
		b.WriteByte('-')
		b.WriteString(l.String())
	}
	purge := m.Purge.Round(time.Minute)
	fmt.Fprintf(&b, "+%02d%02d-", int(purge.Hours()), int(purge.Minutes())%60)
	issued := m.Issued.UTC()
	fmt.Fprintf(&b, "%03d%02d%02d-", issued.YearDay(), issued.Hour(), issued.Minute())
	station := m.Station
	if len(station) < stationLength {
		station += strings.Repeat(" ", stationLength-len(station))
	}
	b.WriteString(station[:stationLength])
	b.WriteByte('-')
	return b.String()
}

func digits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func printable(s string) bool {
	for i := range len(s) {
		if s[i] < 0x20 || s[i] > 0x7e || s[i] == '-' || s[i] == '+' {
			return false
		}
	}
	return true
}

func leapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
