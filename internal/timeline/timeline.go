// Package timeline maps caller-supplied markers into the timeline of a trimmed
// clip and renders them as an ffmpeg FFMETADATA1 chapter file.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Marker is a named point in the source timeline, in seconds.
type Marker struct {
	ID   string  `json:"id"`
	Time float64 `json:"time"`
	Name string  `json:"name,omitempty"`
}

// Adjust returns the markers that fall inside the trim window, re-based so the
// window starts at zero. A nil start means 0 and a nil duration means the
// window runs to the end. Both ends of the window are inclusive. The input
// slice is not modified and the order of the result is unspecified.
func Adjust(markers []Marker, start, duration *float64) []Marker {
	lo := 0.0
	if start != nil {
		lo = *start
	}
	hi := math.Inf(1)
	if duration != nil {
		hi = lo + *duration
	}

	out := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if m.Time < lo || m.Time > hi {
			continue
		}
		m.Time -= lo
		out = append(out, m)
	}
	return out
}

// BuildChapters renders markers as FFMETADATA1 text with one chapter per
// marker. Each chapter ends where the next begins and the last one ends at
// total seconds. Unnamed markers are titled "Chapter n". An empty marker list
// yields an empty string, meaning no chapters.
func BuildChapters(markers []Marker, total float64) string {
	if len(markers) == 0 {
		return ""
	}

	sorted := append([]Marker(nil), markers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")
	for i, m := range sorted {
		end := total
		if i+1 < len(sorted) {
			end = sorted[i+1].Time
		}
		title := m.Name
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}

		b.WriteString("\n[CHAPTER]\n")
		b.WriteString("TIMEBASE=1/1000\n")
		fmt.Fprintf(&b, "START=%d\n", millis(m.Time))
		fmt.Fprintf(&b, "END=%d\n", millis(end))
		fmt.Fprintf(&b, "title=%s\n", escape(title))
	}
	return b.String()
}

func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// escape quotes the characters FFMETADATA treats specially.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"=", `\=`,
		";", `\;`,
		"#", `\#`,
		"\n", `\`+"\n",
	)
	return r.Replace(s)
}
