package main

import (
	"bytes"
	"fmt"
	"io"
	"mycurl/application/http/actor/client"
	"os"
	"sync"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
)

// printer writes progress and results of exchanges.
// Exchanges finish concurrently, so every write is serialized.
type printer struct {
	stdout, stderr io.Writer

	include bool
	pretty  bool

	errColor *color.Color

	mu sync.Mutex
}

func newPrinter(stdout, stderr io.Writer, include, pretty bool) *printer {
	errColor := color.New(color.FgRed)
	if isTerminal(stderr) {
		errColor.EnableColor()
	} else {
		errColor.DisableColor()
	}

	return &printer{
		stdout:   stdout,
		stderr:   stderr,
		include:  include,
		pretty:   pretty,
		errColor: errColor,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) fetching(t client.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.stdout, "%s: fetching %s\n", t.Authority(), t.Path)
}

func (p *printer) done(ex *client.Exchange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ex.Err(); err != nil {
		p.errColor.Fprintf(p.stderr, "%s\n", err)
		return
	}

	result := ex.Result()
	if result == nil {
		return
	}

	host := ex.Target().Authority()
	if p.include {
		fmt.Fprintf(p.stdout, "%s: header length %d\n%s", host, len(result.Header.Raw), result.Header)
	}

	body := result.Body
	if p.pretty {
		body = prettyJSON(body)
	}
	fmt.Fprintf(p.stdout, "%s: body length %d\n%s", host, len(result.Body), body)
	if len(body) > 0 && !bytes.HasSuffix(body, []byte("\n")) {
		fmt.Fprintln(p.stdout)
	}
}

func (p *printer) failure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errColor.Fprintf(p.stderr, "mycurl: %s\n", err)
}

var prettyAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// prettyJSON indents b when it is JSON, otherwise returns b as is.
func prettyJSON(b []byte) []byte {
	if !prettyAPI.Valid(b) {
		return b
	}

	var v any
	if err := prettyAPI.Unmarshal(b, &v); err != nil {
		return b
	}

	indented, err := prettyAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return b
	}
	return append(indented, '\n')
}
