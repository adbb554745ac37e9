package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/client"
	"github.com/xenking/foodcart/internal/domain/money"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/ordersync"
)

var verbs = map[string]order.Status{
	"ship":     order.StatusShipping,
	"complete": order.StatusCompleted,
	"cancel":   order.StatusCancelled,
}

var errUsage = errors.New("usage: ship|complete|cancel <order id>, list, refresh, quit")

type command struct {
	verb string
	id   int64
	to   order.Status
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errUsage
	}
	verb := strings.ToLower(fields[0])
	switch verb {
	case "list", "refresh", "quit":
		if len(fields) != 1 {
			return command{}, errUsage
		}
		return command{verb: verb}, nil
	}
	to, ok := verbs[verb]
	if !ok || len(fields) != 2 {
		return command{}, errUsage
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 10, 64)
	if err != nil || id <= 0 {
		return command{}, errors.Errorf("invalid order id %q", fields[1])
	}
	return command{verb: verb, id: id, to: to}, nil
}

type statusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, status order.Status) (*client.Order, error)
}

type console struct {
	mu   sync.Mutex
	out  io.Writer
	api  statusUpdater
	sync *ordersync.Synchronizer
}

func newConsole(out io.Writer, api statusUpdater) *console {
	return &console{out: out, api: api}
}

// render prints the order table. It is the synchronizer's OnChange hook.
func (c *console) render(orders []order.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tCUSTOMER\tITEMS\tTOTAL\tNEXT")
	for _, o := range orders {
		status := string(o.Status)
		if c.sync != nil && c.sync.Pending(o.ID) {
			status += "*"
		}
		next := make([]string, 0, 3)
		for _, s := range order.AllowedNext(o.Status, order.ActorSeller) {
			next = append(next, strings.ToLower(string(s)))
		}
		_, _ = fmt.Fprintf(tw, "#%d\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, status, o.Customer.Name, len(o.Items), money.Format(o.Total), strings.Join(next, ","),
		)
	}
	_ = tw.Flush()
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *console) exec(ctx context.Context, cmd command) error {
	switch cmd.verb {
	case "list":
		c.render(c.sync.Snapshot())
		return nil
	case "refresh":
		return c.sync.Refresh(ctx)
	}
	_, err := c.sync.Mutate(ctx, cmd.id, cmd.to, func(ctx context.Context) (*order.Order, error) {
		res, err := c.api.UpdateStatus(ctx, cmd.id, cmd.to)
		if err != nil {
			return nil, err
		}
		return &res.Order, nil
	})
	return err
}

// run reads commands from in until EOF, "quit", or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				c.printf("%v\n", err)
				continue
			}
			if cmd.verb == "quit" {
				return nil
			}
			if err := c.exec(ctx, cmd); err != nil {
				c.printf("%s failed: %v\n", cmd.verb, err)
			}
		}
	}
}
