// Package protocol defines the messages exchanged between the render pump and
// the frame governor.
//
// The pump sends Request and the governor answers every Request with exactly
// one Render or Wait. Messages carry no payload.
package protocol

import (
	"bytes"
	"fmt"
)

type Message uint8

const (
	Invalid Message = iota
	// Request asks whether a frame is due.
	Request
	// Render means a frame is due now and the deadline has been reset.
	Render
	// Wait means the frame is not due yet, ask again.
	Wait
)

var names = [...]string{
	Invalid: "INVALID",
	Request: "REQUEST",
	Render:  "RENDER",
	Wait:    "WAIT",
}

func (m Message) String() string {
	if int(m) < len(names) {
		return names[m]
	}

	return fmt.Sprintf("Message(%d)", uint8(m))
}

// IsDecision reports whether m is a governor answer.
func (m Message) IsDecision() bool {
	return m == Render || m == Wait
}

func (m Message) MarshalText() ([]byte, error) {
	if m == Invalid || int(m) >= len(names) {
		return nil, fmt.Errorf("cannot marshal %s", m)
	}

	return []byte(names[m]), nil
}

func (m *Message) UnmarshalText(text []byte) error {
	text = bytes.ToUpper(bytes.TrimSpace(text))
	for i := Request; int(i) < len(names); i++ {
		if string(text) == names[i] {
			*m = i
			return nil
		}
	}

	return fmt.Errorf("unknown message %q, must be one of REQUEST, RENDER, WAIT", text)
}
