// Package lexer defines the token, position and error types shared by ftlex scanners,
// along with adapters that filter or buffer a token stream.
//
// The primary interfaces are Definition and Lexer. *ftlex.Definition and *ftlex.Scanner
// implement them.
package lexer
