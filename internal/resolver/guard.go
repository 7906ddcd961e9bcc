package resolver

import "errors"

// ErrReentered is returned when a class is entered while already in
// progress. Callers consult Active first, so seeing it means a bug.
var ErrReentered = errors.New("class resolution re-entered")

// Guard tracks the classes whose resolution has started but not finished.
//
// Classes reference each other freely (a method of A returns B, a field of
// B points at A). A reference to a class in progress is treated as
// resolvable, which is what lets the include policy close over cycles.
type Guard struct {
	active map[string]bool
	order  []string
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[string]bool)}
}

// Enter marks q in progress. It returns false if q already is.
func (g *Guard) Enter(q string) bool {
	if g.active[q] {
		return false
	}
	g.active[q] = true
	g.order = append(g.order, q)
	return true
}

// Leave marks q finished.
func (g *Guard) Leave(q string) {
	delete(g.active, q)
	for i := len(g.order) - 1; i >= 0; i-- {
		if g.order[i] == q {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Active reports whether q is in progress.
func (g *Guard) Active(q string) bool { return g.active[q] }

// Stack returns the classes in progress, outermost first.
func (g *Guard) Stack() []string {
	return append([]string(nil), g.order...)
}
