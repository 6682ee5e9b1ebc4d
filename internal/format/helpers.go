package format

import (
	"fmt"
	"math"
	"time"
)

// FmtFloat prints four decimals; non-finite values print as nan, inf or -inf.
func FmtFloat(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4f", x)
}

// FmtPercent formats a fraction as a percentage with one decimal.
func FmtPercent(frac float64) string {
	if math.IsNaN(frac) {
		return "nan"
	}
	return fmt.Sprintf("%.1f%%", frac*100)
}

// FmtDuration formats a duration as "Xm Ys", "Ys" or "Nms" below a second.
func FmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}
