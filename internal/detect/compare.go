package detect

// Outcome is the result of comparing one property of two tracks.
type Outcome int

const (
	// Unknown means at least one side lacks the property, so it says nothing either way.
	Unknown Outcome = iota
	Match
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Matched collapses the outcome to a boolean; Unknown counts as false.
func (o Outcome) Matched() bool { return o == Match }

// bitrateTolerance absorbs VBR jitter between encodes of the same file.
const bitrateTolerance = 0.10

func outcome(ok bool) Outcome {
	if ok {
		return Match
	}
	return Mismatch
}

// DurationMatch reports whether two durations are within toleranceMs of each other.
func DurationMatch(a, b *int64, toleranceMs int64) Outcome {
	if a == nil || b == nil {
		return Unknown
	}
	return outcome(abs64(*a-*b) <= toleranceMs)
}

// SizeMatch reports whether two file sizes differ by at most ratio of the larger one.
// Zero sizes cannot be evaluated.
func SizeMatch(a, b *int64, ratio float64) Outcome {
	if a == nil || b == nil || *a == 0 || *b == 0 {
		return Unknown
	}
	return outcome(float64(abs64(*a-*b))/float64(max(*a, *b)) <= ratio)
}

// BitrateMatch reports whether two bitrates are within 10% of the larger one.
func BitrateMatch(a, b *int) Outcome {
	if a == nil || b == nil {
		return Unknown
	}
	hi := max(*a, *b)
	if hi <= 0 {
		return Unknown
	}
	return outcome(float64(abs64(int64(*a-*b)))/float64(hi) <= bitrateTolerance)
}

// SampleRateMatch reports whether two sample rates are identical. Zero is treated as absent.
func SampleRateMatch(a, b *int) Outcome {
	if a == nil || b == nil || *a == 0 || *b == 0 {
		return Unknown
	}
	return outcome(*a == *b)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
