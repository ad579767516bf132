package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// errStreamTruncated reports a stream that ended before a finish reason or
// the [DONE] marker.
var errStreamTruncated = errors.New("stream ended before completion")

// streamError is an error object sent inside the event stream.
type streamError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// readTranscript concatenates the content of an OpenAI-style event stream.
// A non-streaming JSON body (one full message) is accepted as well. Lines
// that are not data events, and data that is not JSON, are ignored.
func readTranscript(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var sb strings.Builder
	sawEvent := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		data, isEvent := strings.CutPrefix(line, "data:")
		if !isEvent {
			// Plain JSON body from servers ignoring stream=true.
			if !sawEvent && strings.HasPrefix(line, "{") {
				data = line
			} else {
				continue
			}
		}
		data = strings.TrimSpace(data)
		sawEvent = sawEvent || isEvent

		if data == "[DONE]" {
			return sb.String(), nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}
		if resp.Error != nil {
			return "", errors.New("stream error: " + resp.Error.Message)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			sb.WriteString(choice.Delta.Content)
		} else {
			sb.WriteString(choice.Message.Content)
		}
		if choice.FinishReason != "" {
			return sb.String(), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errStreamTruncated
}
