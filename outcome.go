package lockbridge

import (
	"math/rand"
	"sync"
)

type operationOutcome int

const (
	outcomeSuccess operationOutcome = iota
	outcomeJammed
	outcomeFault
)

// outcomeDrawer supplies the result of each completed lock operation.
type outcomeDrawer interface {
	Next() operationOutcome
}

// outcomeSource draws the result of a completed lock operation: 2% jam, then
// 1% of the remainder fault, otherwise success. Seedable so tests can pin the
// sequence while production keeps the probability contract.
type outcomeSource struct {
	m *sync.Mutex
	r *rand.Rand
}

func newOutcomeSource(seed int64) *outcomeSource {
	return &outcomeSource{
		m: &sync.Mutex{},
		r: rand.New(rand.NewSource(seed)),
	}
}

func (o *outcomeSource) Next() operationOutcome {
	o.m.Lock()
	defer o.m.Unlock()

	if o.r.Intn(100) < 2 {
		return outcomeJammed
	}

	if o.r.Intn(100) < 1 {
		return outcomeFault
	}

	return outcomeSuccess
}
