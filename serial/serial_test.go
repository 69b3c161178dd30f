package serial

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	bugst "go.bug.st/serial"
)

func TestNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{PortName: "/dev/ttyUSB0", BaudRate: 9600}.Normalize()
	if err != nil {
		t.Fatal("Normalize returned error", err)
	}

	want := PortOptions{
		PortName: "/dev/ttyUSB0",
		BaudRate: 9600,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: StopBitsOne,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"no port", PortOptions{BaudRate: 9600}},
		{"blank port", PortOptions{PortName: "  ", BaudRate: 9600}},
		{"zero baud", PortOptions{PortName: "COM3"}},
		{"negative baud", PortOptions{PortName: "COM3", BaudRate: -1}},
		{"data bits low", PortOptions{PortName: "COM3", BaudRate: 9600, DataBits: 4}},
		{"data bits high", PortOptions{PortName: "COM3", BaudRate: 9600, DataBits: 9}},
		{"parity", PortOptions{PortName: "COM3", BaudRate: 9600, Parity: Parity(17)}},
		{"stop bits", PortOptions{PortName: "COM3", BaudRate: 9600, StopBits: StopBits(-1)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.opts.Normalize(); err == nil {
				t.Error("Expected error for", tc.opts)
			}
		})
	}

	if _, err := (PortOptions{BaudRate: 9600}).Normalize(); !errors.Is(err, ErrorNoPortName) {
		t.Error("Missing port name did not return ErrorNoPortName", err)
	}
}

func TestMode(t *testing.T) {
	opts := PortOptions{
		PortName: "COM3",
		BaudRate: 115200,
		DataBits: 7,
		Parity:   ParityMark,
		StopBits: StopBitsOnePointFive,
	}

	want := &bugst.Mode{
		BaudRate: 115200,
		DataBits: 7,
		Parity:   bugst.MarkParity,
		StopBits: bugst.OnePointFiveStopBits,
	}
	if diff := cmp.Diff(want, opts.mode()); diff != "" {
		t.Errorf("mode mismatch (-want +got):\n%s", diff)
	}

	parities := map[Parity]bugst.Parity{
		ParityNone:  bugst.NoParity,
		ParityOdd:   bugst.OddParity,
		ParityEven:  bugst.EvenParity,
		ParityMark:  bugst.MarkParity,
		ParitySpace: bugst.SpaceParity,
	}
	for in, out := range parities {
		opts.Parity = in
		if opts.mode().Parity != out {
			t.Error("Wrong parity mapping for", in)
		}
	}

	stopBits := map[StopBits]bugst.StopBits{
		StopBitsOne:          bugst.OneStopBit,
		StopBitsOnePointFive: bugst.OnePointFiveStopBits,
		StopBitsTwo:          bugst.TwoStopBits,
	}
	for in, out := range stopBits {
		opts.StopBits = in
		if opts.mode().StopBits != out {
			t.Error("Wrong stop bit mapping for", in)
		}
	}
}

func TestParse(t *testing.T) {
	parities := map[string]Parity{
		"":      ParityNone,
		"n":     ParityNone,
		"None":  ParityNone,
		"O":     ParityOdd,
		"even":  ParityEven,
		" M ":   ParityMark,
		"SPACE": ParitySpace,
	}
	for in, want := range parities {
		got, err := ParseParity(in)
		if err != nil || got != want {
			t.Errorf("ParseParity(%q) = %v, %v; want %v", in, got, err, want)
		}
		if got.String() == "" {
			t.Error("Empty parity name")
		}
	}
	if _, err := ParseParity("X"); err == nil {
		t.Error("ParseParity accepted X")
	}

	stopBits := map[string]StopBits{
		"":             StopBitsOne,
		"1":            StopBitsOne,
		"1.5":          StopBitsOnePointFive,
		"OnePointFive": StopBitsOnePointFive,
		"2":            StopBitsTwo,
		"two":          StopBitsTwo,
	}
	for in, want := range stopBits {
		got, err := ParseStopBits(in)
		if err != nil || got != want {
			t.Errorf("ParseStopBits(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStopBits("3"); err == nil {
		t.Error("ParseStopBits accepted 3")
	}

	if StopBitsOnePointFive.String() != "1.5" {
		t.Error("Wrong name for 1.5 stop bits")
	}
}

func TestOpenInvalidOptions(t *testing.T) {
	if _, err := Open(&PortOptions{PortName: "COM3"}); err == nil {
		t.Error("Open accepted zero baud rate")
	}
}

func TestIsPortClosed(t *testing.T) {
	if !IsPortClosed(ErrorClosed) {
		t.Error("ErrorClosed not recognised")
	}
	if IsPortClosed(errors.New("other")) {
		t.Error("Unrelated error recognised as closed")
	}
	if IsPortClosed(nil) {
		t.Error("nil recognised as closed")
	}
}
