package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"cropadvisor/internal/form"
	"cropadvisor/internal/session"
	"cropadvisor/internal/types"
)

const helpText = `commands:
  city <name>            edit the city (weather follows after a pause)
  set <field> <value>    edit a form field (nitrogen, phosphorus, potassium, ph, temperature, rainfall, city)
  submit                 request a crop recommendation
  show                   print the current state
  help                   print this help
  quit                   exit
`

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// formSession is the part of session.Session the console drives.
type formSession interface {
	SubmitForm(raw map[string]string) error
	CityChanged(value string) error
	Snapshot() session.Snapshot
}

// console is a line-oriented front end over a session.
type console struct {
	sess formSession
	in   io.Reader

	mu     sync.Mutex
	out    io.Writer
	fields map[string]string
}

func newConsole(sess formSession, in io.Reader, out io.Writer) *console {
	return &console{
		sess:   sess,
		in:     in,
		out:    out,
		fields: make(map[string]string, len(formFields)),
	}
}

// Run executes commands until quit, end of input or ctx cancellation.
func (c *console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.printf("%s", helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			err := c.exec(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// Watch re-renders on every snapshot until ch is closed.
func (c *console) Watch(ch <-chan session.Snapshot) {
	for snap := range ch {
		c.show(snap)
	}
}

func (c *console) exec(line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "help":
		c.printf("%s", helpText)
	case "quit", "exit":
		return errQuit
	case "show":
		c.show(c.sess.Snapshot())
	case "city":
		return c.set(types.FieldCity, rest)
	case "set":
		field, value, _ := strings.Cut(rest, " ")
		field = strings.ToLower(field)
		if !slices.Contains(formFields, field) {
			c.printf("unknown field %q\n", field)
			return nil
		}
		return c.set(field, strings.TrimSpace(value))
	case "submit":
		return c.submit()
	default:
		c.printf("unknown command %q (type help)\n", cmd)
	}
	return nil
}

func (c *console) set(field, value string) error {
	c.mu.Lock()
	c.fields[field] = value
	c.mu.Unlock()

	if field == types.FieldCity {
		return c.sess.CityChanged(value)
	}
	return nil
}

func (c *console) submit() error {
	c.mu.Lock()
	raw := maps.Clone(c.fields)
	c.mu.Unlock()

	err := c.sess.SubmitForm(raw)
	var errs form.Errors
	switch {
	case errors.As(err, &errs):
		c.printf("please fix: %s\n", errs.Error())
		return nil
	case err != nil:
		return err
	}
	c.printf("submitted\n")
	return nil
}

func (c *console) show(snap session.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	render(c.out, c.fields, session.Render(snap))
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
