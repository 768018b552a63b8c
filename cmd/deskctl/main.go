// Command deskctl is the terminal front end of the invoice desk. It runs the
// action workflows locally against a remote server, asking confirmations
// and reasons on the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/infrastructure/cache"
	"github.com/erp/invoicedesk/internal/infrastructure/client"
	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/erp/invoicedesk/internal/infrastructure/logger"
	"github.com/erp/invoicedesk/internal/interfaces/cli"
	"go.uber.org/zap"
)

var workflows = map[string]appinvoice.Workflow{
	"confirm": appinvoice.WorkflowConfirm,
	"recover": appinvoice.WorkflowRecoverDeposit,
	"accept":  appinvoice.WorkflowAccept,
	"reject":  appinvoice.WorkflowReject,
}

var errUsage = errors.New("usage")

func main() {
	var (
		configPath string
		token      string
		filter     int
		page       int
		pageSize   int
		assumeYes  bool
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to config.toml")
	flag.StringVar(&token, "token", "", "Access token (overrides remote.token)")
	flag.IntVar(&filter, "filter", 0, "Filter index as shown by list")
	flag.IntVar(&page, "page", 1, "Page number")
	flag.IntVar(&pageSize, "page-size", 20, "Rows per page")
	flag.BoolVar(&assumeYes, "yes", false, "Answer yes to every confirmation")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	term := cli.NewTerminal(os.Stdin, os.Stdout)
	term.AssumeYes(assumeYes)

	desk, err := newDesk(ctx, cfg, token, log, term)
	if err != nil {
		log.Fatal("Failed to start desk", zap.Error(err))
	}
	desk.board.SelectFilter(filter)
	desk.board.SetPage(page, pageSize)

	if err := desk.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// desk holds the remote gateway, the board and the engine of one invocation
type desk struct {
	gateway *client.InvoiceClient
	board   *appinvoice.Board
	engine  *appinvoice.ActionEngine
	term    *cli.Terminal
}

func newDesk(ctx context.Context, cfg *config.Config, token string, log *zap.Logger, term *cli.Terminal) (*desk, error) {
	httpClient, err := client.NewClient(cfg.Remote, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		httpClient.SetToken(token)
	}
	gateway := client.NewInvoiceClient(httpClient)

	// A shared redis registry makes this process see in-flight actions of
	// the server and other operators.
	registry, err := cache.NewRegistryFactory(cfg.Redis, cfg.Registry,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).Create()
	if err != nil {
		return nil, err
	}

	user, err := gateway.FetchCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}

	board := appinvoice.NewBoard(gateway, registry, log)
	board.SetUser(user)

	engine := appinvoice.NewActionEngine(gateway, registry, term, term, log)
	engine.SetRefresher(board)

	return &desk{gateway: gateway, board: board, engine: engine, term: term}, nil
}

func (d *desk) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	switch command {
	case "list":
		return d.list(ctx)
	case "delete":
		return d.delete(ctx, args)
	}

	w, ok := workflows[command]
	if !ok || len(args) != 1 {
		return errUsage
	}
	inv, err := d.fetch(ctx, args[0])
	if err != nil {
		return err
	}
	if !w.Permitted(d.board.User(), inv) {
		return fmt.Errorf("%s is not available for invoice #%d", command, inv.ID)
	}
	return d.settle(ctx, d.engine.Run(ctx, w, inv))
}

func (d *desk) list(ctx context.Context) error {
	if err := d.board.Refresh(ctx); err != nil {
		return err
	}
	d.term.PrintSnapshot(d.board.Snapshot(ctx))
	return nil
}

// delete removes one invoice with DeleteOne and several with DeleteMany.
// Blocked invoices are passed through so the engine refuses them.
func (d *desk) delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	user := d.board.User()
	invs := make([]*invoice.Invoice, 0, len(args))
	for _, arg := range args {
		inv, err := d.fetch(ctx, arg)
		if err != nil {
			return err
		}
		if !inv.IsDeleteBlocked() && !invoice.CanAct(user, inv, invoice.ActionDelete) {
			return fmt.Errorf("delete is not available for invoice #%d", inv.ID)
		}
		invs = append(invs, inv)
	}

	if len(invs) == 1 {
		return d.settle(ctx, d.engine.DeleteOne(ctx, invs[0]))
	}
	return d.settle(ctx, d.engine.DeleteMany(ctx, invs))
}

func (d *desk) fetch(ctx context.Context, arg string) (*invoice.Invoice, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid invoice id: %q", arg)
	}
	return d.gateway.FetchInvoice(ctx, id)
}

// settle prints the list after a success and maps other outcomes to an error
func (d *desk) settle(ctx context.Context, outcome appinvoice.Outcome) error {
	switch outcome {
	case appinvoice.OutcomeSucceeded:
		d.term.PrintSnapshot(d.board.Snapshot(ctx))
		return nil
	case appinvoice.OutcomeCancelled, appinvoice.OutcomeBusy:
		return nil
	}
	return fmt.Errorf("action %s", outcome)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `deskctl - invoice desk terminal

Usage:
  deskctl [flags] <command> [arguments]

Commands:
  list                  Show the filters and the current page
  confirm <id>          Advance the invoice one status step
  recover <id>          Return a confirmed deposit
  accept <id>           Approve a purchase request
  reject <id>           Reject a purchase request, asking for a reason
  delete <id> [id...]   Delete one or several invoices after confirmation

Flags:
  -config string        Path to config.toml
  -token string         Access token (overrides remote.token)
  -filter int           Filter index as shown by list (default 0)
  -page int             Page number (default 1)
  -page-size int        Rows per page (default 20)
  -yes                  Answer yes to every confirmation
  -log-level string     Log level (default warn)

Environment Variables:
  DESK_REMOTE_BASE_URL, DESK_REMOTE_TOKEN, DESK_REMOTE_TIMEOUT, DESK_REMOTE_RETRIES`)
}
