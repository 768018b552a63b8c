package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
)

// Terminal answers the engine's dialogs on a line-oriented terminal and
// prints its notifications. It implements Interaction and Notifier.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	// assumeYes answers every confirmation with yes without reading input
	assumeYes bool
}

// NewTerminal creates a Terminal reading answers from in
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// AssumeYes makes Confirm answer yes without prompting
func (t *Terminal) AssumeYes(yes bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assumeYes = yes
}

// Confirm asks a y/N question. Anything but y or yes, including end of
// input, counts as no.
func (t *Terminal) Confirm(ctx context.Context, title, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s\n%s [y/N]: ", title, message)
	if t.assumeYes {
		fmt.Fprintln(t.out, "y")
		return true
	}
	line, ok := t.readLine(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// PromptText reads one line. End of input or a cancelled context is a cancel.
func (t *Terminal) PromptText(ctx context.Context, title, message, placeholder string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s\n%s\n%s> ", title, message, placeholder)
	line, ok := t.readLine(ctx)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Notify prints a notification as "[kind] message"
func (t *Terminal) Notify(_ context.Context, kind appinvoice.NotificationKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] %s\n", kind, message)
}

// PrintSnapshot writes the filter list and the rows as a table
func (t *Terminal) PrintSnapshot(snap appinvoice.BoardSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, f := range snap.Filters {
		marker := " "
		if i == snap.SelectedIndex {
			marker = "*"
		}
		fmt.Fprintf(t.out, "%s %2d) %s [%s]\n", marker, i, f.Label, f.APIType)
	}
	fmt.Fprintln(t.out)

	tw := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tEMPLOYEE\tACTIONS\tBUSY")
	for _, row := range snap.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			row.Invoice.ID,
			row.TypeLabel,
			row.Display.Label,
			row.Invoice.EmployeeName,
			strings.Join(row.Actions, ","),
			busyClasses(row.Busy))
	}
	_ = tw.Flush()
	fmt.Fprintf(t.out, "page %d of %d, %d invoices\n", snap.Page, snap.TotalPages, snap.TotalItems)
}

// readLine returns false on end of input or when ctx is done first
func (t *Terminal) readLine(ctx context.Context) (string, bool) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", false
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", false
		}
		return r.line, true
	}
}

func busyClasses(flags map[appinvoice.BusyClass]bool) string {
	busy := make([]string, 0, len(flags))
	for _, class := range appinvoice.BusyClasses() {
		if flags[class] {
			busy = append(busy, string(class))
		}
	}
	if len(busy) == 0 {
		return "-"
	}
	return strings.Join(busy, ",")
}
