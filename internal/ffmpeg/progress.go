package ffmpeg

import (
	"strconv"
	"strings"
)

// Progress is a point-in-time report from a running transcode.
type Progress struct {
	// OutTimeSeconds is how much of the source timeline has been encoded.
	OutTimeSeconds float64 `json:"out_time_seconds"`
	// Percent is OutTimeSeconds over the source duration, 0-100. Zero when
	// the source duration is unknown.
	Percent float64 `json:"percent"`
	// FPS is the current encoding frame rate.
	FPS float64 `json:"fps"`
	// Speed is the encoding speed relative to realtime, e.g. 1.5 for 1.5x.
	Speed float64 `json:"speed"`
	// Done is set on the final report of a run.
	Done bool `json:"done"`
}

// progressParser accumulates the key=value lines ffmpeg writes to
// -progress pipe:1 and emits a Progress at every "progress=" boundary.
type progressParser struct {
	totalDuration float64
	current       Progress
}

func newProgressParser(totalDuration float64) *progressParser {
	return &progressParser{totalDuration: totalDuration}
}

// Feed consumes one line. It returns a Progress and true when the line
// completes a report block.
func (p *progressParser) Feed(line string) (Progress, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "fps":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.current.FPS = f
		}
	case "speed":
		// formatted like "1.05x"
		if f, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.current.Speed = f
		}
	case "out_time_ms":
		// despite the name this field is in microseconds
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.current.OutTimeSeconds = float64(us) / 1e6
		}
	case "progress":
		p.current.Done = value == "end"
		if p.totalDuration > 0 {
			percent := p.current.OutTimeSeconds / p.totalDuration * 100
			if percent > 100 {
				percent = 100
			}
			p.current.Percent = percent
		}
		if p.current.Done {
			p.current.Percent = 100
		}
		return p.current, true
	}
	return Progress{}, false
}
