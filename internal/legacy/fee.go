package legacy

import (
	"math/rand/v2"
)

// Source is the random source for fee estimates. *rand.Rand satisfies it.
type Source interface {
	Int64N(n int64) int64
}

type globalSource struct{}

func (globalSource) Int64N(n int64) int64 {
	return rand.Int64N(n)
}

// FeeRange is the inclusive estimate range for the kind of a client's most
// recent interaction. The estimate is for display only.
func FeeRange(kind FormKind) (lo, hi int64) {
	switch kind {
	case FormEventReservation:
		return 10000, 15000
	case FormParticularReservation:
		return 2000, 5000
	case FormAdvisory:
		return 500, 1500
	}
	return 0, 0
}

func estimateFee(src Source, kind FormKind) int64 {
	lo, hi := FeeRange(kind)
	if hi <= lo {
		return lo
	}
	return lo + src.Int64N(hi-lo+1)
}
