package device

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/eas-monitor/internal/errors"
)

// Info describes a capture device.
type Info struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// backendForPlatform returns the malgo backend for the current platform.
func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(nil).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "select_backend").
			Context("os", runtime.GOOS).
			Build()
	}
}

// initContext creates a malgo context routing backend messages to nowhere.
func initContext() (*malgo.AllocatedContext, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

// List returns the available capture devices.
func List() ([]Info, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("audiocore").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}
	return describe(infos), nil
}

func describe(infos []malgo.DeviceInfo) []Info {
	devices := make([]Info, 0, len(infos))
	for i := range infos {
		// Skip the discard/null device
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, Info{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// decodeID turns the hex encoded malgo device id into its readable form,
// "hw:1,0" on ALSA. Undecodable ids are returned unchanged.
func decodeID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(raw), "\x00")
}

// selectDevice picks the device matching want: empty or "default" selects
// the system default (or the first device), otherwise exact name, decoded
// id and name substring are tried in that order. Returns -1 when nothing
// matches.
func selectDevice(devices []Info, want string) int {
	if len(devices) == 0 {
		return -1
	}
	if want == "" || want == "default" || want == "sysdefault" {
		for i := range devices {
			if devices[i].IsDefault {
				return i
			}
		}
		return 0
	}

	for i := range devices {
		if devices[i].Name == want {
			return i
		}
	}
	for i := range devices {
		if devices[i].ID == want {
			return i
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name, want) {
			return i
		}
	}
	return -1
}
