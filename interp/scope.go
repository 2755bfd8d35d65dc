package interp

// frame is one entry in the scope stack. readonly frames never receive a
// write (only the root, hosting the prototype sentinels, is readonly).
// barrier marks a frame as a declaration boundary for plain assignment:
// function call frames are barriers, block/loop frames (if/else bodies,
// while iterations, the single frame a for-loop holds for its duration)
// are not. This is what makes "assignment to an outer name creates a
// function-local binding" (the documented non-closure quirk) coexist with
// loop bodies that accumulate into a pre-existing outer variable, e.g.
// `s = 0; for (i in 0..10) { s = s + i }; s` ending at 45: the loop frame
// is transparent to the search for s's existing binding, a call frame
// is not.
type frame struct {
	vars     map[string]Value
	readonly bool
	barrier  bool
}

func newFrame(readonly, barrier bool) *frame {
	return &frame{vars: make(map[string]Value), readonly: readonly, barrier: barrier}
}

// scopeStack is a plain vector of frames, each owning its bindings.
// Lexical closure is deliberately absent from the language: a Function
// value does not carry a scopeStack of its own, it is always evaluated
// against whichever scopeStack the caller passes to callClosure.
type scopeStack struct {
	frames []*frame
}

// newScopeStack builds the two bottom frames every interpreter starts
// with: a readonly root (the prototype sentinels live here) and a single
// writable barrier frame above it that receives top-level assignments.
func newScopeStack() *scopeStack {
	s := &scopeStack{}
	s.frames = append(s.frames, newFrame(true, false), newFrame(false, true))
	return s
}

func (s *scopeStack) depth() int { return len(s.frames) }

// push adds a new frame. Callers pass barrier=true for a function call
// frame, barrier=false for a transparent block/loop frame.
func (s *scopeStack) push(readonly, barrier bool) {
	s.frames = append(s.frames, newFrame(readonly, barrier))
}

func (s *scopeStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// pushVar implements the insertion policy. With force=true (parameters,
// `this`, the loop-bound variable) it writes directly into the topmost
// frame regardless of readonly or barrier. Otherwise it walks down from
// the top: the first frame that already has a binding for name is updated
// in place: the first barrier frame reached with no such binding gets a
// fresh local declaration. A block/loop frame that has neither is skipped
// transparently, so assignment passes through it to whatever declared the
// name further out (or, failing that, to the global frame, which is
// always a barrier).
func (s *scopeStack) pushVar(name string, v Value, force bool) {
	if force {
		s.frames[len(s.frames)-1].vars[name] = v
		return
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.readonly {
			continue
		}
		if _, ok := f.vars[name]; ok {
			f.vars[name] = v
			return
		}
		if f.barrier {
			f.vars[name] = v
			return
		}
	}
}

// lookup walks frames top to bottom, returning the first binding found.
func (s *scopeStack) lookup(name string) (Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}
