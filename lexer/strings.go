package lexer

import "strconv"

// Unquote applies strconv.Unquote() to tokens of the given types.
func Unquote(lex Lexer, types ...rune) Lexer {
	table := map[rune]bool{}
	for _, r := range types {
		table[r] = true
	}
	return Map(lex, func(t *Token) (*Token, error) {
		if table[t.Type] {
			value, err := strconv.Unquote(t.Value)
			if err != nil {
				return nil, Errorf(t.Pos, "invalid quoted string %q: %s", t.Value, err.Error())
			}
			t.Value = value
		}
		return t, nil
	})
}
