package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrSelectionAborted is returned when the user hits Ctrl+C in the picker.
var ErrSelectionAborted = errors.New("device selection aborted")

// FindDevice returns the device called name, or ErrNoDevice.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, name)
}

// SelectDevice presents an interactive picker on the terminal attached to in.
// With a single device it returns that device without prompting.
func SelectDevice(ctx Context, in *os.File, out io.Writer) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevice
	case 1:
		return &devices[0], nil
	}

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, btTag)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		cursor, done, aborted := pickerKey(buf[:n], cursor, len(devices))
		if aborted {
			fmt.Fprint(out, "\r\n")
			return nil, ErrSelectionAborted
		}
		if done {
			fmt.Fprint(out, "\r\n")
			return &devices[cursor], nil
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}

// pickerKey applies one key press to the cursor.
func pickerKey(key []byte, cursor, n int) (next int, done, aborted bool) {
	up := func() int { return max(cursor-1, 0) }
	down := func() int { return min(cursor+1, n-1) }

	if len(key) == 1 {
		switch key[0] {
		case 13: // Enter
			return cursor, true, false
		case 3: // Ctrl+C
			return cursor, false, true
		case 'k':
			return up(), false, false
		case 'j':
			return down(), false, false
		}
	}
	if len(key) == 3 && key[0] == 0x1b && key[1] == '[' {
		switch key[2] {
		case 'A':
			return up(), false, false
		case 'B':
			return down(), false, false
		}
	}
	return cursor, false, false
}
