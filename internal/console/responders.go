package console

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/tidwall/gjson"

	"github.com/patric-chuzhbe/flatapi/internal/pizza"
	"github.com/patric-chuzhbe/flatapi/internal/uptime"
)

type stat struct {
	name  string
	value string
}

// systemStats collects host figures. Anything the platform cannot report is
// shown as unavailable.
func systemStats() []stat {
	const unavailable = "unavailable"
	stats := make([]stat, 0, 8)

	if avg, err := load.Avg(); err == nil {
		stats = append(stats, stat{"Load Average", fmt.Sprintf("%.2f %.2f %.2f", avg.Load1, avg.Load5, avg.Load15)})
	} else {
		stats = append(stats, stat{"Load Average", unavailable})
	}

	if count, err := cpu.Counts(true); err == nil {
		stats = append(stats, stat{"CPU Count", fmt.Sprint(count)})
	} else {
		stats = append(stats, stat{"CPU Count", fmt.Sprint(runtime.NumCPU())})
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats = append(stats,
			stat{"Free Memory", fmt.Sprint(vm.Free)},
			stat{"Used Memory (%)", fmt.Sprintf("%.0f", vm.UsedPercent)},
		)
	} else {
		stats = append(stats, stat{"Free Memory", unavailable})
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats = append(stats,
		stat{"Heap Allocated", fmt.Sprint(ms.HeapAlloc)},
		stat{"Heap Reserved", fmt.Sprint(ms.HeapSys)},
		stat{"Goroutines", fmt.Sprint(runtime.NumGoroutine())},
	)

	if seconds, err := host.Uptime(); err == nil {
		stats = append(stats, stat{"Uptime", fmt.Sprintf("%d Seconds", seconds)})
	} else {
		stats = append(stats, stat{"Uptime", unavailable})
	}

	return stats
}

func (c *Console) stats(_ context.Context, _ string) error {
	c.horizontalLine()
	c.centered("SYSTEM STATISTICS")
	c.horizontalLine()
	for _, s := range c.collectStats() {
		c.println(fmt.Sprintf("%-40s %s", s.name, s.value))
	}
	c.horizontalLine()

	return nil
}

// records reads every record of a collection as raw JSON, skipping the ones
// that disappeared while listing.
func (c *Console) records(ctx context.Context, collection string) ([]json.RawMessage, error) {
	ids, err := c.src.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("in internal/console/responders.go/records(): error while `c.src.List()` calling: %w", err)
	}

	result := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		var raw json.RawMessage
		if err := c.src.Read(ctx, collection, id, &raw); err != nil {
			continue
		}
		result = append(result, raw)
	}

	return result, nil
}

func userLine(raw []byte) string {
	user := gjson.ParseBytes(raw)
	name := strings.TrimSpace(user.Get("firstName").String() + " " + user.Get("lastName").String())
	if phone := user.Get("phone"); phone.Exists() {
		return fmt.Sprintf("Name: %s Phone: %s Checks: %d", name, phone.String(), user.Get("checks.#").Int())
	}
	return fmt.Sprintf("Name: %s Email: %s Carts: %d", name, user.Get("email").String(), user.Get("carts.#").Int())
}

func (c *Console) listUsers(ctx context.Context, _ string) error {
	users, err := c.records(ctx, uptime.UsersCollection)
	if err != nil {
		return err
	}
	for _, raw := range users {
		c.println(userLine(raw))
	}

	return nil
}

func (c *Console) recentUsers(ctx context.Context, _ string) error {
	users, err := c.records(ctx, pizza.UsersCollection)
	if err != nil {
		return err
	}
	for _, raw := range users {
		if c.recent(raw) {
			c.println(userLine(raw))
		}
	}

	return nil
}

func (c *Console) recent(raw []byte) bool {
	created := gjson.GetBytes(raw, "createdAt")
	if !created.Exists() {
		return false
	}
	return c.now().Sub(created.Time()) <= recentWindow
}

func (c *Console) showRecord(ctx context.Context, collection, line string) error {
	id, ok := argument(line)
	if !ok {
		c.println("Missing --{id}")
		return nil
	}

	var raw json.RawMessage
	if err := c.src.Read(ctx, collection, id, &raw); err != nil {
		return err
	}
	c.printJSON(raw)

	return nil
}

func (c *Console) userInfo(ctx context.Context, line string) error {
	return c.showRecord(ctx, uptime.UsersCollection, line)
}

func (c *Console) checkInfo(ctx context.Context, line string) error {
	return c.showRecord(ctx, uptime.ChecksCollection, line)
}

func (c *Console) orderInfo(ctx context.Context, line string) error {
	return c.showRecord(ctx, pizza.PurchasesCollection, line)
}

func (c *Console) listChecks(ctx context.Context, line string) error {
	lower := strings.ToLower(line)
	wantUp := strings.Contains(lower, "--up")
	wantDown := strings.Contains(lower, "--down")

	checks, err := c.records(ctx, uptime.ChecksCollection)
	if err != nil {
		return err
	}
	for _, raw := range checks {
		check := gjson.ParseBytes(raw)
		state := check.Get("state").String()
		shownState := state
		if shownState == "" {
			state, shownState = uptime.StateDown, "unknown"
		}
		if (wantUp || wantDown) && !(wantUp && state == uptime.StateUp) && !(wantDown && state == uptime.StateDown) {
			continue
		}
		c.println(fmt.Sprintf(
			"ID: %s %s %s://%s State: %s",
			check.Get("id").String(),
			strings.ToUpper(check.Get("method").String()),
			check.Get("protocol").String(),
			check.Get("url").String(),
			shownState,
		))
	}

	return nil
}

func (c *Console) showMenu(_ context.Context, _ string) error {
	for _, item := range c.menu {
		c.println(fmt.Sprintf("ID: %d Name: %s Price: %.2f", item.ID, item.Name, item.Price))
	}

	return nil
}

func (c *Console) recentOrders(ctx context.Context, _ string) error {
	orders, err := c.records(ctx, pizza.PurchasesCollection)
	if err != nil {
		return err
	}
	for _, raw := range orders {
		if !c.recent(raw) {
			continue
		}
		order := gjson.ParseBytes(raw)
		c.println(fmt.Sprintf(
			"Order: %s Email: %s Total: %.2f Placed: %s",
			order.Get("purchaseId").String(),
			order.Get("email").String(),
			order.Get("total").Float(),
			order.Get("createdAt").Time().Format(time.RFC3339),
		))
	}

	return nil
}

func (c *Console) runBackup(ctx context.Context, _ string) error {
	if c.backup == nil {
		c.println("Backup is not configured")
		return nil
	}

	count, err := c.backup.Backup(ctx)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("Backed up %d records", count))

	return nil
}
