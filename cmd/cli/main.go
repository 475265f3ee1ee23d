package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nazeru/phoneshop-go/internal/apiclient"
	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
)

type action struct {
	Name        string
	Description string
}

var actions = []action{
	{"stats", "Order counts and revenue"},
	{"best", "Best selling products"},
	{"customers", "Top customers"},
	{"low-stock", "Products running out"},
	{"pending", "Pending orders"},
	{"order", "Place a test order (PRODUCT_ID)"},
	{"cancel", "Cancel the last order placed here"},
	{"bench", "Run a short order benchmark"},
}

type model struct {
	client    *apiclient.Client
	selected  int
	status    string
	output    string
	busy      bool
	lastOrder string
}

func initialModel(c *apiclient.Client) model {
	return model{client: c, status: "Ready"}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(actions)-1 {
				m.selected++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Running..."
			return m, runActionCmd(m.client, actions[m.selected].Name, m.lastOrder)
		}
	case actionResult:
		m.busy = false
		m.status = msg.status
		m.output = msg.output
		if msg.orderID != "" {
			m.lastOrder = msg.orderID
		}
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "phoneshop console  %s\n\n", m.client.BaseURL)
	for i, a := range actions {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-10s %s\n", marker, a.Name, a.Description)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.output != "" {
		fmt.Fprintln(b, m.output)
	}
	fmt.Fprintln(b, "\nControls: up/down select, enter to run, q to quit")
	return b.String()
}

type actionResult struct {
	status  string
	output  string
	orderID string
}

func failed(err error) actionResult {
	return actionResult{status: "Error: " + err.Error()}
}

func runActionCmd(c *apiclient.Client, name, lastOrder string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b := &strings.Builder{}
		switch name {
		case "stats":
			s, err := c.OrderStats(ctx)
			if err != nil {
				return failed(err)
			}
			fmt.Fprintf(b, "orders=%d revenue=%s net=%s avg=%s\n", s.TotalOrders, s.TotalRevenue, s.NetRevenue, s.AverageOrderValue)
			fmt.Fprintf(b, "pending=%d confirmed=%d shipping=%d delivered=%d cancelled=%d",
				s.PendingOrders, s.ConfirmedOrders, s.ShippingOrders, s.CompletedOrders, s.CancelledOrders)
		case "best":
			best, err := c.BestSelling(ctx, 10)
			if err != nil {
				return failed(err)
			}
			for _, p := range best {
				fmt.Fprintf(b, "%-30s qty=%-5d revenue=%s\n", p.Name, p.TotalQuantity, p.TotalRevenue)
			}
		case "customers":
			rep, err := c.CustomerStats(ctx, 10)
			if err != nil {
				return failed(err)
			}
			fmt.Fprintf(b, "customers=%d avg orders=%.2f\n", rep.Overview.TotalCustomers, rep.Overview.AvgOrdersPerCustomer)
			for _, tc := range rep.TopCustomers {
				fmt.Fprintf(b, "%-24s %-14s orders=%-4d spent=%s\n", tc.FullName, tc.Phone, tc.TotalOrders, tc.TotalSpent)
			}
		case "low-stock":
			ps, err := c.LowStock(ctx, 10)
			if err != nil {
				return failed(err)
			}
			for _, p := range ps {
				fmt.Fprintf(b, "%-30s stock=%d\n", p.Title, p.Stock)
			}
		case "pending":
			orders, err := c.ListOrders(ctx, domain.OrderStatusPending, 20)
			if err != nil {
				return failed(err)
			}
			for _, o := range orders {
				fmt.Fprintf(b, "%s %-14s %s\n", o.OrderNumber, o.Customer.Phone, o.FinalAmount)
			}
		case "order":
			o, _, err := c.CreateOrder(ctx, testOrder(), "")
			if err != nil {
				return failed(err)
			}
			return actionResult{status: "Order placed: " + o.OrderNumber, orderID: o.ID}
		case "cancel":
			if lastOrder == "" {
				return actionResult{status: "No order placed in this session"}
			}
			o, err := c.CancelOrder(ctx, lastOrder)
			if err != nil {
				return failed(err)
			}
			return actionResult{status: "Order cancelled: " + o.OrderNumber}
		case "bench":
			return actionResult{status: "Benchmark finished", output: runBenchmark(c)}
		default:
			return actionResult{status: "unknown action " + name}
		}
		return actionResult{status: "OK", output: strings.TrimRight(b.String(), "\n")}
	}
}

func testOrder() workflow.CreateOrderInput {
	return workflow.CreateOrderInput{
		Customer: workflow.CustomerInput{
			Name:    getenv("CUSTOMER_NAME", "Console Buyer"),
			Phone:   getenv("CUSTOMER_PHONE", "0900000000"),
			Address: getenv("CUSTOMER_ADDRESS", "Counter"),
		},
		Items: []workflow.ItemInput{{ProductID: getenv("PRODUCT_ID", ""), Quantity: 1}},
	}
}

func runBenchmark(c *apiclient.Client) string {
	duration := 5 * time.Second
	vus := 5
	var mu sync.Mutex
	var total time.Duration
	var count int
	codes := map[string]int{}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < vus; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				start := time.Now()
				_, _, err := c.CreateOrder(ctx, testOrder(), "")
				mu.Lock()
				if err != nil {
					if ctx.Err() == nil {
						codes[apiclient.Code(err)]++
					}
				} else {
					count++
					total += time.Since(start)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	avg := time.Duration(0)
	if count > 0 {
		avg = total / time.Duration(count)
	}
	throughput := float64(count) / duration.Seconds()
	return fmt.Sprintf("count=%d errors=%v avg=%s throughput=%.2f orders/s", count, codes, avg, throughput)
}

func main() {
	run := flag.String("run", "", "run one action and exit: "+actionNames())
	baseURL := flag.String("base-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order-service base URL")
	flag.Parse()

	client := apiclient.New(*baseURL, 10*time.Second)
	if *run != "" {
		res := runActionCmd(client, *run, getenv("ORDER_ID", ""))().(actionResult)
		fmt.Println(res.status)
		if res.output != "" {
			fmt.Println(res.output)
		}
		return
	}

	p := tea.NewProgram(initialModel(client))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func actionNames() string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name)
	}
	return strings.Join(names, "|")
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
