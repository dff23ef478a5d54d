// Command ftlex scans input with the rules of a rule file and prints the tokens.
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/op/go-logging"
)

var (
	version = "dev"
	log     = logging.MustGetLogger("ftlex")
)

// CLI is the ftlex command line.
type CLI struct {
	Version  kong.VersionFlag
	LogLevel string `help:"Log level (debug, info, notice, warning, error)." default:"warning" enum:"debug,info,notice,warning,error"`

	Scan    scanCmd    `cmd:"" help:"Scan input files and print their tokens."`
	Symbols symbolsCmd `cmd:"" help:"Print the token types of a rule file."`
}

// environment carries the process streams into commands.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
}

func configureLogging(w io.Writer, level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return err
	}
	backend := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(`%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`),
	)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Description(`A lex-style scanner driven by rule files.`),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(configureLogging(os.Stderr, cli.LogLevel))
	err := kctx.Run(&environment{stdin: os.Stdin, stdout: os.Stdout})
	kctx.FatalIfErrorf(err)
}
