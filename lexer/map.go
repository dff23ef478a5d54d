package lexer

// MapFunc transforms tokens.
//
// If nil is returned that token will be discarded. EOF tokens are never passed
// to a MapFunc.
type MapFunc func(*Token) (*Token, error)

// Map is a Lexer that applies a mapping function to a Lexer's tokens.
func Map(lex Lexer, f MapFunc) Lexer {
	return &mapper{lexer: lex, f: f}
}

type mapper struct {
	lexer Lexer
	f     MapFunc
}

func (m *mapper) Next() (Token, error) {
	for {
		t, err := m.lexer.Next()
		if err != nil {
			return t, err
		}
		if t.EOF() {
			return t, nil
		}
		mapped, err := m.f(&t)
		if err != nil {
			return Token{}, err
		}
		if mapped != nil {
			return *mapped, nil
		}
	}
}
