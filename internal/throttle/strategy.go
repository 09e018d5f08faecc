package throttle

// Decision reports whether the counter value just passed triggers a pause.
type Decision struct {
	Fired bool
	Rule  Rule
}

// State is the cached next stop of the full strategy. The zero value is
// an uninitialised state; the lite strategy never reads it.
type State struct {
	ready bool
	next  int
	rule  Rule
}

// NextStop returns the cached counter value and rule of the next pause.
func (s State) NextStop() (int, Rule, bool) {
	return s.next, s.rule, s.ready
}

// Strategy decides whether the counter value sent triggers a pause. It is
// a pure function of its inputs: callers own the State and must pass the
// returned value to the next call.
type Strategy interface {
	Name() string
	Next(state State, sent int) (State, Decision)
}

// NewStrategy returns the lite strategy when lite is set, the full one
// otherwise.
func NewStrategy(rules Rules, lite bool) Strategy {
	if lite {
		return Lite{rules: rules}
	}
	return Full{rules: rules}
}

// Lite scans every rule on every call.
type Lite struct {
	rules Rules
}

func (Lite) Name() string { return "lite" }

func (l Lite) Next(state State, sent int) (State, Decision) {
	rule, ok := l.rules.largestDividing(sent)
	if !ok {
		return state, Decision{}
	}
	return state, Decision{Fired: true, Rule: rule}
}

// Full caches the next stop and only does work when the counter reaches it.
type Full struct {
	rules Rules
}

func (Full) Name() string { return "full" }

func (f Full) Next(state State, sent int) (State, Decision) {
	if len(f.rules) == 0 || sent <= 0 {
		return state, Decision{}
	}
	// The counter can start past zero or jump over the cached stop, in
	// which case the stop is projected again from just before it.
	if !state.ready || sent > state.next {
		state = f.project(sent - 1)
	}
	if sent != state.next {
		return state, Decision{}
	}

	fired := state.rule
	return f.project(sent), Decision{Fired: true, Rule: fired}
}

// project returns the smallest multiple of any threshold strictly greater
// than after, paired with the largest rule dividing it.
func (f Full) project(after int) State {
	if after < 0 {
		after = 0
	}
	next := 0
	for _, r := range f.rules {
		candidate := (after/r.Threshold + 1) * r.Threshold
		if next == 0 || candidate < next {
			next = candidate
		}
	}
	rule, _ := f.rules.largestDividing(next)
	return State{ready: true, next: next, rule: rule}
}
