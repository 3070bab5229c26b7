package render

import "fmt"

// QualityLevel selects the sampling density of the ray-marching kernels.
// Higher levels trade frame time for finer steps and longer rays.
type QualityLevel int

const (
	QualityLow QualityLevel = iota
	QualityMedium
	QualityHigh
	QualityUltra
)

// qualityTable maps each level to its fixed (stepSize, maxSamples) pair.
var qualityTable = [...]struct {
	stepSize   float64
	maxSamples int
}{
	QualityLow:    {0.02, 200},
	QualityMedium: {0.01, 500},
	QualityHigh:   {0.005, 1000},
	QualityUltra:  {0.002, 2000},
}

// StepSize returns the ray-march step length in normalized volume units.
func (q QualityLevel) StepSize() float64 {
	return qualityTable[q.clamped()].stepSize
}

// MaxSamples returns the sample budget per ray.
func (q QualityLevel) MaxSamples() int {
	return qualityTable[q.clamped()].maxSamples
}

func (q QualityLevel) clamped() QualityLevel {
	if q < QualityLow || q > QualityUltra {
		return QualityMedium
	}
	return q
}

func (q QualityLevel) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra"
	default:
		return fmt.Sprintf("QualityLevel(%d)", int(q))
	}
}

// ParseQuality maps a quality name to its level.
func ParseQuality(name string) (QualityLevel, error) {
	switch name {
	case "low":
		return QualityLow, nil
	case "medium":
		return QualityMedium, nil
	case "high":
		return QualityHigh, nil
	case "ultra":
		return QualityUltra, nil
	default:
		return QualityMedium, fmt.Errorf("unknown quality level %q", name)
	}
}
