package profile

import (
	"fmt"
	"math"

	"github.com/glassbox-ml/lime/internal/dataset"
)

// Describe renders a human-readable description of where an instance's value
// sits in the profiled distribution, e.g. "4310 < Income <= 8200" or
// "Country = US". This string is what downstream reporting shows next to a
// feature weight.
func (p *Profile) Describe(feat int, v dataset.Value) string {
	fs := p.Features[feat]

	if fs.Degenerate {
		if fs.Type == dataset.Categorical {
			return fmt.Sprintf("%s = %s", fs.Name, fs.ConstLevel)
		}
		return fmt.Sprintf("%s = %s", fs.Name, trimFloat(fs.ConstFloat))
	}

	if fs.Type == dataset.Categorical {
		level := v.Level
		if p.LevelIndex(feat, level) < 0 {
			level = fs.Mode
		}
		return fmt.Sprintf("%s = %s", fs.Name, level)
	}

	b := p.BinIndex(feat, v.Float)
	bin := fs.Bins[b]
	switch {
	case math.IsInf(bin.Lower, -1):
		return fmt.Sprintf("%s <= %s", fs.Name, trimFloat(bin.Upper))
	case math.IsInf(bin.Upper, 1):
		return fmt.Sprintf("%s > %s", fs.Name, trimFloat(bin.Lower))
	default:
		return fmt.Sprintf("%s < %s <= %s", trimFloat(bin.Lower), fs.Name, trimFloat(bin.Upper))
	}
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.4g", f)
}
