package transcode

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// progressParser turns ffmpeg "-progress pipe:1" key=value blocks into
// percentages of the expected output duration.
type progressParser struct {
	expectedSeconds float64
	last            float64
}

func newProgressParser(expectedSeconds float64) *progressParser {
	return &progressParser{expectedSeconds: expectedSeconds, last: -1}
}

// line consumes one line and returns a new percentage when it advanced.
func (p *progressParser) line(raw string) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both in microseconds.
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 || p.expectedSeconds <= 0 {
			return 0, false
		}
		percent := clampPercent(float64(us) / 1e6 / p.expectedSeconds * 100)
		// Leave 100 for process exit.
		if percent > 99.9 {
			percent = 99.9
		}
		return p.advance(percent)
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return p.advance(100)
		}
	}
	return 0, false
}

func (p *progressParser) advance(percent float64) (float64, bool) {
	if percent <= p.last {
		return 0, false
	}
	p.last = percent
	return percent, true
}

func (p *progressParser) consume(r io.Reader, emit ProgressFunc) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if percent, ok := p.line(scanner.Text()); ok && emit != nil {
			emit(percent)
		}
	}
	return scanner.Err()
}

// tailBuffer retains the last max bytes written to it.
type tailBuffer struct {
	max  int
	data []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.data = append(t.data, b...)
	if over := len(t.data) - t.max; over > 0 {
		t.data = t.data[over:]
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.data))
}
