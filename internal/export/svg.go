package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrTooFewSamples = errors.New("export: need at least two samples")

// Trace is one joint's recorded angle over snapshot timestamps.
type Trace struct {
	Joint  string
	Times  []uint64
	Angles []float64
}

// Options controls the rendered plot.
type Options struct {
	Width  int
	Height int
	Stroke string
	// Min and Max pin the vertical axis; equal values autoscale.
	Min, Max float64
}

func DefaultOptions() Options {
	return Options{Width: 800, Height: 300, Stroke: "#00ff00"}
}

// TraceToSVG renders a trace as a polyline with timestamps on the x axis.
func TraceToSVG(w io.Writer, tr Trace, opt Options) error {
	n := len(tr.Angles)
	if n < 2 || len(tr.Times) != n {
		return ErrTooFewSamples
	}
	if opt.Width <= 0 || opt.Height <= 0 {
		return fmt.Errorf("export: bad size %dx%d", opt.Width, opt.Height)
	}
	if opt.Stroke == "" {
		opt.Stroke = DefaultOptions().Stroke
	}

	minX, maxX := float64(tr.Times[0]), float64(tr.Times[n-1])
	minY, maxY := opt.Min, opt.Max
	if minY == maxY {
		minY, maxY = tr.Angles[0], tr.Angles[0]
		for _, a := range tr.Angles {
			minY = min(minY, a)
			maxY = max(maxY, a)
		}
		// pad autoscaled bounds by 10%
		pad := (maxY - minY) * 0.1
		if pad == 0 {
			pad = 0.5
		}
		minY -= pad
		maxY += pad
	}
	rangeX := maxX - minX
	if rangeX == 0 {
		rangeX = 1
	}
	rangeY := maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<title>%s</title>
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, opt.Width, opt.Height, opt.Width, opt.Height, escape(tr.Joint))

	if minY < 0 && maxY > 0 {
		zy := float64(opt.Height) - (0-minY)/rangeY*float64(opt.Height)
		fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#333333" stroke-dasharray="4 4"/>
`, zy, opt.Width, zy)
	}

	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, escape(opt.Stroke))
	for i, a := range tr.Angles {
		x := (float64(tr.Times[i]) - minX) / rangeX * float64(opt.Width)
		y := float64(opt.Height) - (a-minY)/rangeY*float64(opt.Height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>
`)

	_, err := io.WriteString(w, sb.String())
	return err
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return xmlEscaper.Replace(s) }
