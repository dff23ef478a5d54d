// Package ftlex is a runtime for lex-style scanners.
//
// A scanner is described by Rules: regular expressions with optional actions,
// grouped by start condition. New compiles them into a Definition, and
// Definition.NewScanner returns a Scanner that owns the input buffers, the
// current match and the line count.
//
//	def := ftlex.Must(ftlex.Rules{
//	    "INITIAL": {
//	        {"Comment", `/\*`, ftlex.Push("COMMENT")},
//	        {"Ident", `[a-zA-Z_]\w*`, nil},
//	        {"Number", `[0-9]+`, nil},
//	        {"whitespace", `\s+`, nil},
//	    },
//	    "COMMENT": {
//	        {"CommentEnd", `\*/`, ftlex.Pop()},
//	        {"comment", `[^*]+|\*`, nil},
//	    },
//	})
//	scanner := def.NewScanner(os.Stdin)
//	for {
//	    token, err := scanner.Lex()
//	    ...
//	}
//
// The longest match wins, ties going to the rule listed first. Rules named with
// a leading lowercase letter are not returned as tokens. A pattern starting with
// "^" only matches at the beginning of a line and one ending in "$" only before
// a newline or the end of input. Patterns are otherwise RE2 syntax, with one
// extension: \N refers to group N of the rule that pushed the current start
// condition, which can be used to lex, among other things, heredocs.
//
// Input that no rule matches is copied to the Scanner's output, unless the
// Definition was built with NoDefault.
package ftlex
