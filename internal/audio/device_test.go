package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"

	"github.com/rbright/murmur/internal/fault"
)

func TestPick(t *testing.T) {
	headset := Device{ID: "bluez_input.headset", Description: "Bluetooth Headset", Available: true}
	usb := Device{ID: "alsa_input.usb-yeti", Description: "Yeti Stereo Microphone", Available: true, Default: true}
	mutedUSB := usb
	mutedUSB.Muted = true
	unplugged := Device{ID: "alsa_input.pci-analog", Description: "Built-in Audio", Default: true}

	tests := []struct {
		name         string
		devices      []Device
		input        string
		fallback     string
		wantID       string
		wantFallback bool
		wantWarning  string
		wantErr      error
		wantErrText  string
	}{
		{name: "default", devices: []Device{usb, headset}, input: "default", fallback: "default", wantID: usb.ID},
		{name: "blank means default", devices: []Device{headset, usb}, wantID: usb.ID},
		{name: "input by description", devices: []Device{usb, headset}, input: "Bluetooth", wantID: headset.ID},
		{name: "muted primary uses fallback", devices: []Device{mutedUSB, headset}, input: "yeti", fallback: "headset", wantID: headset.ID, wantFallback: true, wantWarning: "muted"},
		{name: "unavailable primary uses fallback", devices: []Device{unplugged, headset}, input: "pci", fallback: "headset", wantID: headset.ID, wantFallback: true, wantWarning: "unavailable"},
		{name: "muted default with default fallback", devices: []Device{mutedUSB}, wantErr: fault.ErrPermissionDenied, wantErrText: "muted"},
		{name: "no devices", wantErr: fault.ErrCapabilityAbsent, wantErrText: "no audio input devices"},
		{name: "unknown input", devices: []Device{usb}, input: "missing", wantErr: fault.ErrCapabilityAbsent, wantErrText: "did not match"},
		{name: "fallback missing", devices: []Device{unplugged}, input: "pci", fallback: "headset", wantErr: fault.ErrCapabilityAbsent, wantErrText: "not found"},
		{name: "no default", devices: []Device{headset}, wantErr: fault.ErrCapabilityAbsent, wantErrText: "default audio source"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := pick(tc.devices, tc.input, tc.fallback)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.ErrorContains(t, err, tc.wantErrText)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, sel.Device.ID)
			require.Equal(t, tc.wantFallback, sel.Fallback)
			if tc.wantWarning == "" {
				require.Empty(t, sel.Warning)
			} else {
				require.Contains(t, sel.Warning, tc.wantWarning)
			}
		})
	}
}

func TestPulseUnavailableIsCapabilityAbsent(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/murmur-test-no-pulse")

	_, err := ListDevices(context.Background())
	require.ErrorIs(t, err, fault.ErrCapabilityAbsent)

	_, err = SelectDevice(context.Background(), "default", "default")
	require.ErrorIs(t, err, fault.ErrCapabilityAbsent)

	_, err = StartCapture(context.Background(), Device{ID: "mic"})
	require.ErrorIs(t, err, fault.ErrCapabilityAbsent)
}

func TestDevicesFromReply(t *testing.T) {
	withPorts := &pulseproto.GetSourceInfoReply{SourceName: "usb", Device: "USB Mic", ActivePortName: "mic", State: 1}
	setPorts(t, withPorts, map[string]uint32{"mic": 1, "line": 2})
	plain := &pulseproto.GetSourceInfoReply{SourceName: "monitor", Device: "Monitor", Mute: true, State: 7}

	devices := devicesFromReply(pulseproto.GetSourceInfoListReply{withPorts, nil, plain}, "monitor")
	require.Equal(t, []Device{
		{ID: "usb", Description: "USB Mic", State: "idle", Available: false},
		{ID: "monitor", Description: "Monitor", State: "unknown(7)", Available: true, Muted: true, Default: true},
	}, devices)
}

func TestActivePortAvailable(t *testing.T) {
	require.False(t, activePortAvailable(nil))

	for avail, want := range map[uint32]bool{0: true, 1: false, 2: true} {
		src := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
		setPorts(t, src, map[string]uint32{"mic": avail})
		require.Equal(t, want, activePortAvailable(src), avail)
	}
}

func TestDeviceString(t *testing.T) {
	require.Equal(t, "Mic (mic-1)", Device{ID: "mic-1", Description: "Mic"}.String())
	require.Equal(t, "mic-1", Device{ID: "mic-1"}.String())
	require.Equal(t, "Mic", Device{Description: " Mic "}.String())
}

// setPorts fills the reply's unexported-type port slice by reflection.
func setPorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	t.Helper()

	field := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	slice := reflect.MakeSlice(field.Type(), 0, len(ports))
	for name, avail := range ports {
		item := reflect.New(field.Type().Elem()).Elem()
		item.FieldByName("Name").SetString(name)
		item.FieldByName("Available").SetUint(uint64(avail))
		slice = reflect.Append(slice, item)
	}
	field.Set(slice)
}
