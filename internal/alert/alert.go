// Package alert fans decoded SAME messages out to delivery sinks without
// ever blocking the scanner.
package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/eas-monitor/internal/same"
)

// Kind distinguishes activations from end of message markers.
type Kind string

const (
	KindAlert Kind = "alert"
	KindEOM   Kind = "eom"
)

// Alert is one emitted event.
type Alert struct {
	ID       string
	Kind     Kind
	SourceID string
	Monitor  string // name of this monitoring station
	Received time.Time
	Message  *same.Message // nil for KindEOM
}

// Header returns the raw header, or NNNN for an end of message.
func (a Alert) Header() string {
	if a.Message == nil {
		return "NNNN"
	}
	return a.Message.Raw
}

// Event returns the event code, or EOM.
func (a Alert) Event() string {
	if a.Message == nil {
		return "EOM"
	}
	return a.Message.Event
}

// Title is a short human readable subject line.
func (a Alert) Title() string {
	if a.Message == nil {
		return fmt.Sprintf("End of message on %s", a.SourceID)
	}
	title := fmt.Sprintf("%s (%s)", a.Message.EventName(), a.Message.Event)
	if a.Message.Confidence == same.ConfidenceLow {
		title += " [unconfirmed]"
	}
	return title
}

// Body is the notification text.
func (a Alert) Body() string {
	if a.Message == nil {
		return fmt.Sprintf("End of message received on %s at %s.",
			a.SourceID, a.Received.UTC().Format(time.RFC3339))
	}
	var b strings.Builder
	b.WriteString(a.Message.Summary())
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Source: %s, confidence %s (%d of %d bursts agree).\n",
		a.SourceID, a.Message.Confidence, a.Message.Agreeing, a.Message.Bursts)
	b.WriteString(a.Message.Raw)
	return b.String()
}

type locationPayload struct {
	Code        string `json:"code"`
	Subdivision int    `json:"subdivision"`
	State       string `json:"state"`
	County      string `json:"county"`
	Description string `json:"description"`
}

type payload struct {
	ID             string            `json:"id"`
	Kind           Kind              `json:"kind"`
	SourceID       string            `json:"source_id"`
	Monitor        string            `json:"monitor,omitempty"`
	Received       time.Time         `json:"received"`
	Header         string            `json:"header"`
	Originator     string            `json:"originator,omitempty"`
	OriginatorName string            `json:"originator_name,omitempty"`
	Event          string            `json:"event,omitempty"`
	EventName      string            `json:"event_name,omitempty"`
	Significance   string            `json:"significance,omitempty"`
	Locations      []locationPayload `json:"locations,omitempty"`
	PurgeMinutes   int               `json:"purge_minutes,omitempty"`
	Issued         *time.Time        `json:"issued,omitempty"`
	Expires        *time.Time        `json:"expires,omitempty"`
	Station        string            `json:"station,omitempty"`
	Confidence     string            `json:"confidence,omitempty"`
	Bursts         int               `json:"bursts,omitempty"`
	Agreeing       int               `json:"agreeing,omitempty"`
}

// MarshalJSON renders the flat wire form shared by the MQTT and Kafka sinks.
func (a Alert) MarshalJSON() ([]byte, error) {
	p := payload{
		ID:       a.ID,
		Kind:     a.Kind,
		SourceID: a.SourceID,
		Monitor:  a.Monitor,
		Received: a.Received.UTC(),
		Header:   a.Header(),
	}
	if m := a.Message; m != nil {
		issued, expires := m.Issued.UTC(), m.Expires().UTC()
		p.Originator = string(m.Originator)
		p.OriginatorName = m.Originator.Name()
		p.Event = m.Event
		p.EventName = m.EventName()
		p.Significance = string(m.Significance())
		p.PurgeMinutes = int(m.Purge.Minutes())
		p.Issued = &issued
		p.Expires = &expires
		p.Station = m.Station
		p.Confidence = string(m.Confidence)
		p.Bursts = m.Bursts
		p.Agreeing = m.Agreeing
		for _, l := range m.Locations {
			p.Locations = append(p.Locations, locationPayload{
				Code:        l.String(),
				Subdivision: l.Subdivision,
				State:       l.State,
				County:      l.County,
				Description: l.Describe(),
			})
		}
	}
	return json.Marshal(p)
}
