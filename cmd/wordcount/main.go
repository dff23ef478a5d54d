// Command wordcount counts the lines, words and bytes of its input, like wc.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/pix3l-p33p3r/ft-lex"
)

var (
	files = kingpin.Arg("files", "Files to count. Reads stdin if none are given.").ExistingFiles()
	debug = kingpin.Flag("debug", "Trace rule matching to stderr.").Bool()
)

type counts struct {
	name  string
	lines int
	words int
	bytes int
}

func (c *counts) add(o counts) {
	c.lines += o.lines
	c.words += o.words
	c.bytes += o.bytes
}

// counter accumulates counts for each input as the scanner moves through them.
type counter struct {
	paths   []string
	file    *os.File
	current counts
	results []counts
	err     error
}

func (c *counter) definition() *ftlex.Definition {
	return ftlex.MustSimple([]ftlex.Rule{
		{Name: "word", Pattern: `[^ \t\n]+`, Action: ftlex.Func(func(s *ftlex.Scanner) error {
			c.current.words++
			c.current.bytes += s.Leng()
			return nil
		})},
		{Name: "space", Pattern: `[ \t]+|\n`, Action: ftlex.Func(func(s *ftlex.Scanner) error {
			c.current.bytes += s.Leng()
			return nil
		})},
	})
}

func (c *counter) open() (*os.File, error) {
	if c.file != nil {
		_ = c.file.Close()
	}
	f, err := os.Open(c.paths[0])
	if err != nil {
		return nil, err
	}
	c.paths = c.paths[1:]
	c.file = f
	c.current = counts{name: f.Name()}
	return f, nil
}

// wrap records the counts of the input just finished and moves to the next.
func (c *counter) wrap(s *ftlex.Scanner) bool {
	c.current.lines = s.Lineno() - 1
	c.results = append(c.results, c.current)
	if len(c.paths) == 0 {
		return true
	}
	f, err := c.open()
	if err != nil {
		c.err = err
		return true
	}
	s.SetIn(f)
	s.SetLineno(1)
	return false
}

func wordcount(paths []string, stdin io.Reader, w io.Writer, options ...ftlex.ScannerOption) error {
	c := &counter{paths: paths}
	r := stdin
	if len(paths) > 0 {
		f, err := c.open()
		if err != nil {
			return err
		}
		r = f
	}
	defer func() {
		if c.file != nil {
			_ = c.file.Close()
		}
	}()
	s := c.definition().NewScanner(r, append(options, ftlex.Wrap(c.wrap))...)
	for {
		token, err := s.Lex()
		if err != nil {
			return err
		}
		if c.err != nil {
			return c.err
		}
		if token.EOF() {
			break
		}
	}
	total := counts{name: "total"}
	for _, result := range c.results {
		printCounts(w, result)
		total.add(result)
	}
	if len(c.results) > 1 {
		printCounts(w, total)
	}
	return nil
}

func printCounts(w io.Writer, c counts) {
	fmt.Fprintf(w, "%8d%8d%8d", c.lines, c.words, c.bytes)
	if c.name != "" {
		fmt.Fprintf(w, " %s", c.name)
	}
	fmt.Fprintln(w)
}

func main() {
	kingpin.Parse()
	options := []ftlex.ScannerOption{}
	level := logging.WARNING
	if *debug {
		level = logging.DEBUG
		options = append(options, ftlex.Debug(nil))
	}
	logging.SetLevel(level, "ftlex")
	err := wordcount(*files, os.Stdin, os.Stdout, options...)
	kingpin.FatalIfError(err, "")
}
