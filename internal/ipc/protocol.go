// Package ipc carries newline-delimited JSON commands between murmur processes
// and the single session owner listening on a unix socket.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Commands understood by the session owner.
const (
	CommandStatus = "status"
	CommandTalk   = "talk"
	CommandStop   = "stop"
)

// maxMessageBytes bounds one framed message in either direction.
const maxMessageBytes = 64 << 10

var errMessageTooLarge = errors.New("message exceeds size limit")

// Request is one newline-delimited command sent to the session owner. Wait asks
// a talk request to reply only once the turn has returned to idle.
type Request struct {
	Command string `json:"command"`
	Wait    bool   `json:"wait,omitempty"`
}

// Response reports the owner's view of the session after handling a request.
type Response struct {
	OK         bool   `json:"ok"`
	Phase      string `json:"phase,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(data) >= maxMessageBytes {
		return errMessageTooLarge
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func readMessage(r *bufio.Reader, v any) error {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return err
		}
		line = append(line, chunk...)
		if len(line) >= maxMessageBytes {
			return errMessageTooLarge
		}
		if !isPrefix {
			break
		}
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
