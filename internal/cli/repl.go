package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"docqa/internal/domain"
)

const (
	replPrompt    = "Enter the query: "
	cmdQuit       = `\q`
	cmdTiming     = `\timing`
	answerRule    = 50
	sourceRule    = 60
	iterationRule = 80
	maxLineBytes  = 1 << 20
)

// answerer is the part of the QA use case the REPL needs.
type answerer interface {
	Answer(ctx context.Context, question string) (*domain.QAResult, error)
}

// REPL reads questions line by line and prints answers with their sources.
type REPL struct {
	qa     answerer
	in     *bufio.Scanner
	out    io.Writer
	timing bool
}

func NewREPL(qa answerer, in io.Reader, out io.Writer) *REPL {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &REPL{
		qa:     qa,
		in:     sc,
		out:    out,
		timing: true,
	}
}

// Run loops until \q or end of input. When initial is non-empty it is
// answered once and Run returns.
func (r *REPL) Run(ctx context.Context, initial string) error {
	if q := strings.TrimSpace(initial); q != "" {
		return r.ask(ctx, q)
	}

	for {
		fmt.Fprint(r.out, replPrompt)
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		q := strings.TrimSpace(r.in.Text())

		switch q {
		case "":
			continue
		case cmdQuit:
			return nil
		case cmdTiming:
			r.timing = !r.timing
			state := "off"
			if r.timing {
				state = "on"
			}
			fmt.Fprintf(r.out, "Timing is %s.\n", state)
			continue
		}

		if err := r.ask(ctx, q); err != nil {
			fmt.Fprintf(r.out, "\nError: %v\n", err)
		}
		fmt.Fprintln(r.out, strings.Repeat("=", iterationRule))

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *REPL) ask(ctx context.Context, q string) error {
	start := time.Now()
	res, err := r.qa.Answer(ctx, q)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	printResult(r.out, res)
	if r.timing {
		fmt.Fprintf(r.out, "Time to retrieve response: %s\n", elapsed)
	}
	return nil
}

func printResult(w io.Writer, res *domain.QAResult) {
	fmt.Fprintf(w, "\nAnswer: %s\n", res.Answer)
	fmt.Fprintln(w, strings.Repeat("=", answerRule))

	for i, doc := range res.Sources {
		fmt.Fprintf(w, "\nSource Document %d\n\n", i+1)
		fmt.Fprintf(w, "Source Text: %s\n", doc.Content)
		fmt.Fprintf(w, "Document Name: %s\n", doc.Source())
		fmt.Fprintf(w, "Page Number: %s\n\n", doc.Page())
		fmt.Fprintln(w, strings.Repeat("=", sourceRule))
	}
}
