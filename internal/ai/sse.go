package ai

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

const (
	sseDataPrefix = "data:"
	sseDoneMarker = "[DONE]"
)

// StreamTranscript observes an OpenAI-style SSE stream and collects the
// assistant text from choices[0].delta.content. It never alters the
// stream; writes always succeed.
type StreamTranscript struct {
	mu      sync.Mutex
	pending []byte
	content strings.Builder
	done    bool
}

func NewStreamTranscript() *StreamTranscript {
	return &StreamTranscript{}
}

func (t *StreamTranscript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, p...)
	for {
		index := bytes.IndexByte(t.pending, '\n')
		if index < 0 {
			break
		}
		line := bytes.TrimRight(t.pending[:index], "\r")
		t.consumeLine(line)
		t.pending = t.pending[index+1:]
	}
	return len(p), nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (t *StreamTranscript) consumeLine(line []byte) {
	if !bytes.HasPrefix(line, []byte(sseDataPrefix)) {
		return
	}
	data := bytes.TrimSpace(line[len(sseDataPrefix):])
	if string(data) == sseDoneMarker {
		t.done = true
		return
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	t.content.WriteString(chunk.Choices[0].Delta.Content)
}

// Content is the assistant text seen so far.
func (t *StreamTranscript) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content.String()
}

// Done reports whether the terminal "data: [DONE]" line was seen.
func (t *StreamTranscript) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
