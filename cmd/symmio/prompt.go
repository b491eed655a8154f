package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// prompter asks for values on an interactive terminal. An empty answer
// takes the default; an invalid one is asked again.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) String(label string, def mo.Option[string]) (string, error) {
	if d, ok := def.Get(); ok {
		fmt.Fprintf(p.out, "%s [%s]: ", label, d)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def.OrEmpty(), nil
	}
	return line, nil
}

func (p *prompter) Int(label string, def mo.Option[int64], min int64) (int64, error) {
	var strDef mo.Option[string]
	if d, ok := def.Get(); ok {
		strDef = mo.Some(strconv.FormatInt(d, 10))
	}

	for {
		raw, err := p.String(label, strDef)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fmt.Fprintln(p.out, "  Invalid integer, try again.")
			continue
		}
		if n < min {
			fmt.Fprintf(p.out, "  Must be >= %d.\n", min)
			continue
		}
		return n, nil
	}
}

func (p *prompter) Decimal(label string, def mo.Option[string], min decimal.Decimal) (decimal.Decimal, error) {
	for {
		raw, err := p.String(label, def)
		if err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fmt.Fprintln(p.out, "  Invalid decimal, try again.")
			continue
		}
		if d.LessThan(min) {
			fmt.Fprintf(p.out, "  Must be >= %s.\n", min)
			continue
		}
		return d, nil
	}
}
