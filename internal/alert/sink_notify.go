package alert

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// NotifySink pushes activations to chat and push services through shoutrrr.
// End of message markers are not pushed.
type NotifySink struct {
	sender *router.ServiceRouter
}

// NewNotifySink creates a sender for the given shoutrrr service URLs.
func NewNotifySink(urls []string, timeout time.Duration) (*NotifySink, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("notify sink requires at least one service URL").
			Component(componentAlert).
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// Service URLs carry tokens.
		return nil, errors.Newf("invalid notification URL: %s", errors.ScrubMessage(err.Error())).
			Component(componentAlert).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &NotifySink{sender: sender}, nil
}

func (s *NotifySink) Name() string { return "notify" }

func (s *NotifySink) Deliver(ctx context.Context, a Alert) error {
	if a.Kind == KindEOM {
		return nil
	}

	params := stypes.Params{}
	params.SetTitle(a.Title())

	done := make(chan []error, 1)
	go func() {
		done <- s.sender.Send(a.Body(), &params)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case errs := <-done:
		var msgs []string
		for _, err := range errs {
			if err != nil {
				msgs = append(msgs, errors.ScrubMessage(err.Error()))
			}
		}
		if len(msgs) > 0 {
			return errors.Newf("notification failed: %s", strings.Join(msgs, "; ")).
				Component(componentAlert).
				Category(errors.CategoryIntegration).
				Build()
		}
		return nil
	}
}

func (s *NotifySink) Close() error { return nil }
