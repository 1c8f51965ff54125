package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/murmur/internal/fault"
)

const clientName = "murmur"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

func (d Device) String() string {
	id, desc := strings.TrimSpace(d.ID), strings.TrimSpace(d.Description)
	switch {
	case desc == "":
		return id
	case id == "":
		return desc
	}
	return desc + " (" + id + ")"
}

// usable reports why d cannot record, or nil.
func (d Device) usable() error {
	if d.Muted {
		return fmt.Errorf("%w: audio device %q is muted", fault.ErrPermissionDenied, d.ID)
	}
	if !d.Available {
		return fmt.Errorf("%w: audio device %q is not available", fault.ErrCapabilityAbsent, d.ID)
	}
	return nil
}

func (d Device) matches(term string) bool {
	return strings.Contains(strings.ToLower(d.ID), term) ||
		strings.Contains(strings.ToLower(d.Description), term)
}

// Selection is the device capture will use. Warning is set when the
// configured input could not be used as-is.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func dialPulse() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", fault.ErrCapabilityAbsent, err)
	}
	return client, nil
}

// ListDevices enumerates Pulse input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := dialPulse()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("%w: read default source: %v", fault.ErrCapabilityAbsent, err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("%w: list sources: %v", fault.ErrCapabilityAbsent, err)
	}
	return devicesFromReply(reply, def.ID()), nil
}

func devicesFromReply(reply pulseproto.GetSourceInfoListReply, defaultID string) []Device {
	out := make([]Device, 0, len(reply))
	for _, src := range reply {
		if src == nil {
			continue
		}
		out = append(out, Device{
			ID:          src.SourceName,
			Description: src.Device,
			State:       stateName(src.State),
			Available:   activePortAvailable(src),
			Muted:       src.Mute,
			Default:     src.SourceName == defaultID,
		})
	}
	return out
}

// SelectDevice picks the capture device for the configured input and
// fallback terms. Either term may be blank or "default" for the server default.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return pick(devices, input, fallback)
}

func pick(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, fmt.Errorf("%w: no audio input devices found", fault.ErrCapabilityAbsent)
	}
	input, fallback = searchTerm(input), searchTerm(fallback)

	primary, ok := find(devices, input)
	if !ok {
		if input == "" {
			return Selection{}, errNoDefault
		}
		return Selection{}, fmt.Errorf("%w: capture.input %q did not match any device", fault.ErrCapabilityAbsent, input)
	}
	if primary.usable() == nil {
		return Selection{Device: primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alt, ok := find(devices, fallback)
	switch {
	case !ok && fallback != "":
		return Selection{}, fmt.Errorf("%w: primary input %q is %s and fallback %q not found",
			fault.ErrCapabilityAbsent, primary.ID, reason, fallback)
	case !ok:
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, reason, errNoDefault)
	}
	if err := alt.usable(); err != nil {
		return Selection{}, err
	}

	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("capture.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

var errNoDefault = fmt.Errorf("%w: default audio source is unavailable", fault.ErrCapabilityAbsent)

// find returns the default device for an empty term, else the first match.
func find(devices []Device, term string) (Device, bool) {
	for _, d := range devices {
		if (term == "" && d.Default) || (term != "" && d.matches(term)) {
			return d, true
		}
	}
	return Device{}, false
}

func searchTerm(raw string) string {
	term := strings.ToLower(strings.TrimSpace(raw))
	if term == "default" {
		return ""
	}
	return term
}

var stateNames = [...]string{"running", "idle", "suspended"}

func stateName(state uint32) string {
	if int(state) < len(stateNames) {
		return stateNames[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// activePortAvailable treats a source without ports, or whose active port
// reports unknown (0) or yes (2), as available.
func activePortAvailable(src *pulseproto.GetSourceInfoReply) bool {
	if src == nil {
		return false
	}
	for _, port := range src.Ports {
		if port.Name == src.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
