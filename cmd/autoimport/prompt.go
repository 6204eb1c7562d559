package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoInput = errors.New("no input provided")

// prompter asks questions on out and reads answers line by line from in.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// Ask repeats question until a non-blank answer is given.
func (p *prompter) Ask(question string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s ", question)
		line, err := p.readLine()
		if line != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		if err != nil {
			return "", err
		}
	}
}

// Confirm asks a yes/no question. A blank answer, or end of input, picks def.
func (p *prompter) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		fmt.Fprintf(p.out, "%s %s ", question, hint)
		line, err := p.readLine()
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			return def, nil
		}
		if err != nil {
			return def, nil
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if errors.Is(err, io.EOF) {
		return line, io.EOF
	}
	return line, nil
}
