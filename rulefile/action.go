package rulefile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pix3l-p33p3r/ft-lex"
)

// ParseAction parses the action of a rule file rule.
//
// An action is one of skip, echo, reject, more, terminate, pop, push:COND,
// begin:COND, emit:'c', emit:N or less:N. Several actions may be joined with
// commas and are applied in order. The empty string is no action.
func ParseAction(text string) (ftlex.Action, error) {
	parts, err := splitActions(text)
	if err != nil {
		return nil, err
	}
	actions := []ftlex.Action{}
	for _, part := range parts {
		action, err := parseOne(part)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	switch len(actions) {
	case 0:
		return nil, nil
	case 1:
		return actions[0], nil
	}
	return ftlex.Actions(actions...), nil
}

func parseOne(text string) (ftlex.Action, error) {
	verb, arg := text, ""
	if i := strings.IndexByte(text, ':'); i >= 0 {
		verb, arg = text[:i], text[i+1:]
	}
	noArg := func(action ftlex.Action) (ftlex.Action, error) {
		if arg != "" {
			return nil, fmt.Errorf("action %q takes no argument", verb)
		}
		return action, nil
	}
	switch verb {
	case "skip":
		return noArg(ftlex.Skip())
	case "echo":
		return noArg(ftlex.Echo())
	case "reject":
		return noArg(ftlex.Reject())
	case "more":
		return noArg(ftlex.More())
	case "terminate":
		return noArg(ftlex.Terminate())
	case "pop":
		return noArg(ftlex.Pop())
	case "push", "begin":
		if arg == "" {
			return nil, fmt.Errorf("action %q needs a start condition", verb)
		}
		if verb == "push" {
			return ftlex.Push(arg), nil
		}
		return ftlex.Begin(arg), nil
	case "emit":
		typ, err := parseTokenType(arg)
		if err != nil {
			return nil, err
		}
		return ftlex.Emit(typ), nil
	case "less":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid length %q for less", arg)
		}
		return ftlex.Less(n), nil
	}
	return nil, fmt.Errorf("unknown action %q", text)
}

func parseTokenType(arg string) (rune, error) {
	if strings.HasPrefix(arg, "'") {
		value, err := strconv.Unquote(arg)
		if err != nil {
			return 0, fmt.Errorf("invalid token type %s: %w", arg, err)
		}
		rn, _ := utf8.DecodeRuneInString(value)
		return rn, nil
	}
	n, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid token type %q", arg)
	}
	return rune(n), nil
}

// splitActions splits on commas outside single quotes.
func splitActions(text string) ([]string, error) {
	parts := []string{}
	start := 0
	quoted := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if quoted {
				i++
			}
		case '\'':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = appendPart(parts, text[start:i])
				start = i + 1
			}
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in action %q", text)
	}
	return appendPart(parts, text[start:]), nil
}

func appendPart(parts []string, part string) []string {
	part = strings.TrimSpace(part)
	if part == "" {
		return parts
	}
	return append(parts, part)
}
