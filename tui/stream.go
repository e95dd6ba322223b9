package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Event mirrors the JSON shape the monitor package's SSE endpoint
// emits for each broker.Event.
type Event struct {
	ID         string   `json:"id"`
	Cmd        string   `json:"cmd"`
	Args       []string `json:"args"`
	DurationNS int64    `json:"duration_ns"`
	Error      string   `json:"error,omitempty"`
	Hot        bool     `json:"hot,omitempty"`

	receivedAt time.Time
}

func (e Event) duration() time.Duration {
	return time.Duration(e.DurationNS)
}

// eventStream pulls decoded Events off an SSE response body one at a
// time, reading the underlying connection only as the caller asks for
// the next event.
type eventStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func dialEvents(target string) (*eventStream, error) {
	resp, err := http.Get(strings.TrimRight(target, "/") + "/events")
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("dial %s: status %s", target, resp.Status)
	}
	return &eventStream{resp: resp, reader: bufio.NewReader(resp.Body)}, nil
}

func (s *eventStream) close() {
	s.resp.Body.Close()
}

// next blocks until the next "data: " line arrives and returns its
// decoded Event.
func (s *eventStream) next() (Event, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		ev.receivedAt = time.Now()
		return ev, nil
	}
}
