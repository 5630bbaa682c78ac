// Package console is the operator's line-oriented admin console. It reads
// the same records as the servers, either from a local store or through the
// admin gRPC service.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/patric-chuzhbe/flatapi/internal/pizza"
)

const (
	defaultWidth = 80
	recentWindow = 24 * time.Hour
)

type source interface {
	List(ctx context.Context, collection string) ([]string, error)
	Read(ctx context.Context, collection, id string, dst any) error
	Collections(ctx context.Context) ([]string, error)
}

type backuper interface {
	Backup(ctx context.Context) (int, error)
}

type Console struct {
	src          source
	backup       backuper
	menu         pizza.Menu
	now          func() time.Time
	width        int
	printlnFn    func(a ...any) (int, error)
	collectStats func() []stat
}

type InitOption func(*Console)

// WithBackup enables the backup command.
func WithBackup(b backuper) InitOption {
	return func(c *Console) {
		c.backup = b
	}
}

// WithMenu sets the menu printed by the menu command.
func WithMenu(menu pizza.Menu) InitOption {
	return func(c *Console) {
		c.menu = menu
	}
}

// WithOutput redirects everything the console prints to w.
func WithOutput(w io.Writer) InitOption {
	return func(c *Console) {
		c.printlnFn = func(a ...any) (int, error) {
			return fmt.Fprintln(w, a...)
		}
	}
}

func WithClock(now func() time.Time) InitOption {
	return func(c *Console) {
		c.now = now
	}
}

func New(src source, opts ...InitOption) *Console {
	c := &Console{
		src:          src,
		menu:         pizza.DefaultMenu,
		now:          time.Now,
		width:        terminalWidth(),
		printlnFn:    fmt.Println,
		collectStats: systemStats,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

type command struct {
	input       string
	description string
	run         func(c *Console, ctx context.Context, line string) error
}

// commands are matched in order against the lowercased input, so longer
// inputs that contain shorter ones come first.
var commands []command

func init() {
	commands = []command{
		{"man", "Show this help page", (*Console).help},
		{"help", `Alias of the "man" command`, (*Console).help},
		{"exit", "Leave the console", nil},
		{"stats", "Get statistics on the underlying operating system and resource utilization", (*Console).stats},
		{"list users", "Show a list of all the registered users", (*Console).listUsers},
		{"more user info", "Show details of a specified user: more user info --{userId}", (*Console).userInfo},
		{"list checks", `Show every check with its state. The "--up" and "--down" flags are optional`, (*Console).listChecks},
		{"more check info", "Show details of a specified check: more check info --{checkId}", (*Console).checkInfo},
		{"menu", "Show the pizza menu", (*Console).showMenu},
		{"recent orders", "Show the orders placed in the last 24 hours", (*Console).recentOrders},
		{"order info", "Show details of a specified order: order info --{orderId}", (*Console).orderInfo},
		{"recent users", "Show the users who signed up in the last 24 hours", (*Console).recentUsers},
		{"user info", "Show details of a specified user: user info --{email}", (*Console).userInfo},
		{"backup", "Upload every record to the configured bucket", (*Console).runBackup},
	}
}

func (c *Console) println(a ...any) {
	_, _ = c.printlnFn(a...)
}

// Process executes one input line and reports whether the console should
// keep reading.
func (c *Console) Process(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	head, _, _ := strings.Cut(strings.ToLower(line), "--")
	for _, cmd := range commands {
		if !strings.Contains(head, cmd.input) {
			continue
		}
		if cmd.run == nil {
			return false
		}
		if err := cmd.run(c, ctx, line); err != nil {
			c.println("Error:", err)
		}
		return true
	}

	c.println("Sorry, try again")

	return true
}

// Run reads commands from in until exit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.println("The CLI is running")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if !c.Process(ctx, scanner.Text()) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("in internal/console/console.go/Run(): error while `scanner.Scan()` calling: %w", err)
	}

	return nil
}

func (c *Console) horizontalLine() {
	c.println(strings.Repeat("-", c.width))
}

func (c *Console) centered(s string) {
	padding := (c.width - len(s)) / 2
	if padding < 0 {
		padding = 0
	}
	c.println(strings.Repeat(" ", padding) + s)
}

// argument extracts the value following "--".
func argument(line string) (string, bool) {
	_, value, found := strings.Cut(line, "--")
	value = strings.TrimSpace(value)
	return value, found && value != ""
}

func (c *Console) printJSON(raw []byte) {
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		c.println(string(raw))
		return
	}
	delete(pretty, "hashedPassword")

	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		c.println(string(raw))
		return
	}
	c.println(string(out))
}

func (c *Console) help(_ context.Context, _ string) error {
	c.horizontalLine()
	c.centered("CLI MANUAL")
	c.horizontalLine()
	for _, cmd := range commands {
		c.println(fmt.Sprintf("%-20s %s", cmd.input, cmd.description))
	}
	c.horizontalLine()

	return nil
}
