package audiocore

import (
	"github.com/tphakala/eas-monitor/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

var (
	// ErrSourceNotFound is returned when an audio source is not found
	ErrSourceNotFound = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryNotFound).
				Context("resource", "audio_source").
				Build()

	// ErrDuplicateSource is returned when trying to add a source whose id is taken
	ErrDuplicateSource = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryConflict).
				Context("resource", "audio_source").
				Build()

	// ErrAlreadyRunning is returned by Start when a capture task already exists
	ErrAlreadyRunning = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryState).
				Context("resource", "audio_source").
				Build()

	// ErrInvalidSourceConfig is returned when a source definition is rejected
	ErrInvalidSourceConfig = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryConfiguration).
				Context("resource", "audio_source").
				Build()

	// ErrInvalidAudioFormat is returned when audio format is invalid
	ErrInvalidAudioFormat = errors.New(nil).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "audio_format").
				Build()
)
