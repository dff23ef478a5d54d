package main

import (
	"fmt"
	"sort"

	"github.com/pix3l-p33p3r/ft-lex/rulefile"
)

type symbolsCmd struct {
	Rules string `arg:"" type:"existingfile" help:"Rule file (.json, .yaml, .toml or .ebnf)."`
}

func (c *symbolsCmd) Run(env *environment) error {
	def, err := rulefile.Load(c.Rules)
	if err != nil {
		return err
	}
	symbols := def.Symbols()
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return symbols[names[i]] > symbols[names[j]] })
	for _, name := range names {
		fmt.Fprintf(env.stdout, "%d\t%s\n", symbols[name], name)
	}
	fmt.Fprintf(env.stdout, "\nstart conditions: %v\n", def.Conditions())
	return nil
}
