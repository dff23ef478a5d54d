package ftlex

// A Action is applied when a rule matches.
//
// The matched text is available from the Scanner when the action runs.
type Action interface {
	applyAction(s *Scanner, groups []string) error
}

// conditionAction is implemented by actions that switch start condition, so
// their targets can be checked when the Definition is built.
type conditionAction interface {
	conditions() []string
}

// ActionPop pops to the previous start condition when the Rule matches.
type ActionPop struct{}

func (p ActionPop) applyAction(s *Scanner, groups []string) error {
	return s.PopCondition()
}

// Pop to the previous start condition.
func Pop() Action {
	return ActionPop{}
}

// ActionPush pushes the current start condition and switches to "State" when the Rule matches.
type ActionPush struct{ State string }

func (p ActionPush) applyAction(s *Scanner, groups []string) error {
	s.stack = append(s.stack, conditionState{name: p.State, groups: groups})
	return nil
}

func (p ActionPush) conditions() []string { return []string{p.State} }

// Push to the given start condition.
//
// The target condition's rules will then be used for matching
// until another Push, Pop or Begin is encountered. Back-references
// in the target condition's patterns refer to this rule's groups.
func Push(state string) Action {
	return ActionPush{state}
}

// ActionBegin replaces the current start condition with "State".
type ActionBegin struct{ State string }

func (b ActionBegin) applyAction(s *Scanner, groups []string) error {
	s.Begin(b.State)
	return nil
}

func (b ActionBegin) conditions() []string { return []string{b.State} }

// Begin switches to the given start condition without remembering the current one.
func Begin(state string) Action {
	return ActionBegin{state}
}

// ActionEmit overrides the token type returned for the match.
type ActionEmit struct{ Type rune }

func (e ActionEmit) applyAction(s *Scanner, groups []string) error {
	s.emit(e.Type)
	return nil
}

// Emit returns the match with the given token type, eg. Emit('+').
//
// The match is returned even if the rule's name would otherwise elide it.
func Emit(typ rune) Action {
	return ActionEmit{typ}
}

type simpleAction int

const (
	actionEcho simpleAction = iota
	actionSkip
	actionReject
	actionMore
	actionTerminate
)

func (a simpleAction) applyAction(s *Scanner, groups []string) error {
	switch a {
	case actionEcho:
		return s.Echo()
	case actionSkip:
		s.Skip()
	case actionReject:
		s.Reject()
	case actionMore:
		s.More()
	case actionTerminate:
		s.Terminate()
	}
	return nil
}

// Echo copies the matched text to the Scanner's output.
func Echo() Action { return actionEcho }

// Skip discards the match.
func Skip() Action { return actionSkip }

// Reject discards the match and applies the next best matching rule.
func Reject() Action { return actionReject }

// More prefixes the text of the next match with this one.
func More() Action { return actionMore }

// Terminate makes Lex return an EOF token immediately.
func Terminate() Action { return actionTerminate }

// ActionLess returns all but the first N bytes of the match to the input.
type ActionLess struct{ N int }

func (l ActionLess) applyAction(s *Scanner, groups []string) error {
	return s.Less(l.N)
}

// Less returns all but the first n bytes of the match to the input.
func Less(n int) Action {
	return ActionLess{n}
}

// ActionFunc runs arbitrary code when a Rule matches.
type ActionFunc func(s *Scanner) error

func (f ActionFunc) applyAction(s *Scanner, groups []string) error {
	return f(s)
}

// Func wraps a function as an Action.
func Func(f func(s *Scanner) error) Action {
	return ActionFunc(f)
}

type sequence []Action

func (q sequence) applyAction(s *Scanner, groups []string) error {
	for _, action := range q {
		if err := action.applyAction(s, groups); err != nil {
			return err
		}
	}
	return nil
}

func (q sequence) conditions() []string {
	var out []string
	for _, action := range q {
		if ca, ok := action.(conditionAction); ok {
			out = append(out, ca.conditions()...)
		}
	}
	return out
}

// Actions applies several actions in order, stopping at the first error.
func Actions(actions ...Action) Action {
	return sequence(actions)
}
