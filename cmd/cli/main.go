package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// apiClient talks to the ledgerclose HTTP API.
type apiClient struct {
	baseURL    string
	tenant     string
	retries    uint64
	httpClient *http.Client
	out        io.Writer
}

// apiError is a non-2xx response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, strings.TrimSpace(e.Body))
}

// do sends a request and decodes a JSON response into out when non-nil.
// 503 responses and transport errors are retried with exponential backoff.
// Mutating requests carry one Idempotency-Key across all attempts.
func (c *apiClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	idempotencyKey := ""
	if method != http.MethodGet {
		idempotencyKey = uuid.NewString()
	}

	var result []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", c.tenant)
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusServiceUnavailable:
			return &apiError{Status: resp.StatusCode, Body: string(data)}
		case resp.StatusCode >= 300:
			return backoff.Permanent(&apiError{Status: resp.StatusCode, Body: string(data)})
		}

		result = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *apiClient) print(data []byte) error {
	if len(data) == 0 {
		_, err := fmt.Fprintln(c.out, "ok")
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = c.out.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := c.out.Write(buf.Bytes())
	return err
}

func (c *apiClient) run(cmd *cobra.Command, method, path string, body any) error {
	data, err := c.do(cmd.Context(), method, path, body)
	if err != nil {
		return err
	}
	return c.print(data)
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &apiClient{out: out}
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerclose CLI tool",
		Long:          `A command line interface for balance sheet snapshots, year-end closes and payment allocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.tenant == "" {
				return errors.New("--tenant is required")
			}
			c.baseURL = strings.TrimRight(c.baseURL, "/")
			c.httpClient = &http.Client{Timeout: timeout}
			return nil
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&c.baseURL, "url", envOr("LEDGERCLOSE_URL", "http://localhost:8080"), "Base URL of the ledgerclose API")
	rootCmd.PersistentFlags().StringVar(&c.tenant, "tenant", os.Getenv("LEDGERCLOSE_TENANT"), "Tenant ID")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().Uint64Var(&c.retries, "retries", 3, "Retries on 503 responses")

	rootCmd.AddCommand(
		newSnapshotCmd(c),
		newCompareCmd(c),
		newCloseCmd(c),
		newAllocateCmd(c),
		newTrialBalanceCmd(c),
	)
	return rootCmd
}

func newSnapshotCmd(c *apiClient) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Balance sheet snapshot operations",
	}

	var (
		financialYear string
		includeZero   bool
	)
	generateCmd := &cobra.Command{
		Use:   "generate <as-of-date>",
		Short: "Generate a draft snapshot as of a date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"as_of_date": args[0], "financial_year": financialYear}
			if cmd.Flags().Changed("include-zero") {
				body["include_zero_balances"] = includeZero
			}
			return c.run(cmd, http.MethodPost, "/api/v1/snapshots", body)
		},
	}
	generateCmd.Flags().StringVar(&financialYear, "year", "", "Financial year label")
	generateCmd.Flags().BoolVar(&includeZero, "include-zero", false, "Keep zero-balance accounts")
	_ = generateCmd.MarkFlagRequired("year")

	var (
		limit  int
		offset int
		asOf   string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, or show the one for --date",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if asOf != "" {
				q.Set("as_of_date", asOf)
			} else {
				q.Set("limit", strconv.Itoa(limit))
				q.Set("offset", strconv.Itoa(offset))
			}
			return c.run(cmd, http.MethodGet, "/api/v1/snapshots?"+q.Encode(), nil)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	listCmd.Flags().StringVar(&asOf, "date", "", "As-of date (YYYY-MM-DD)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a snapshot with items and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, http.MethodGet, "/api/v1/snapshots/"+url.PathEscape(args[0]), nil)
		},
	}

	finalizeCmd := &cobra.Command{
		Use:   "finalize <id>",
		Short: "Finalize a balanced draft snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, http.MethodPost, "/api/v1/snapshots/"+url.PathEscape(args[0])+"/finalize", nil)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, http.MethodDelete, "/api/v1/snapshots/"+url.PathEscape(args[0]), nil)
		},
	}

	var title, content string
	noteCmd := &cobra.Command{
		Use:   "note <id>",
		Short: "Attach a note to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, http.MethodPost, "/api/v1/snapshots/"+url.PathEscape(args[0])+"/notes",
				map[string]string{"title": title, "content": content})
		},
	}
	noteCmd.Flags().StringVar(&title, "title", "", "Note title")
	noteCmd.Flags().StringVar(&content, "content", "", "Note content")
	_ = noteCmd.MarkFlagRequired("title")

	snapshotCmd.AddCommand(generateCmd, listCmd, showCmd, finalizeCmd, deleteCmd, noteCmd)
	return snapshotCmd
}

func newCompareCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <current-id> <previous-id>",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, http.MethodPost, "/api/v1/comparisons", map[string]string{
				"current_snapshot_id":  args[0],
				"previous_snapshot_id": args[1],
			})
		},
	}
}

func newCloseCmd(c *apiClient) *cobra.Command {
	var (
		nextYear         string
		retainedEarnings int64
	)
	closeCmd := &cobra.Command{
		Use:   "close <financial-year> <closing-date>",
		Short: "Close a financial year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"financial_year": args[0],
				"closing_date":   args[1],
			}
			if nextYear != "" {
				body["next_financial_year"] = nextYear
			}
			if cmd.Flags().Changed("retained-earnings") {
				body["retained_earnings_account_id"] = retainedEarnings
			}
			return c.run(cmd, http.MethodPost, "/api/v1/closes", body)
		},
	}
	closeCmd.Flags().StringVar(&nextYear, "next-year", "", "Label of the next financial year")
	closeCmd.Flags().Int64Var(&retainedEarnings, "retained-earnings", 0, "Retained earnings account ID")
	return closeCmd
}

func newAllocateCmd(c *apiClient) *cobra.Command {
	var (
		direction    string
		date         string
		counterparty string
		bankAccount  string
		amount       string
		invoices     []string
		notes        []string
	)
	allocateCmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate a payment to invoices and credit or debit notes",
		Example: `  ledgerctl allocate --tenant t1 --direction receipt --date 2024-06-01 \
    --counterparty cust-1 --bank bank-1 --amount 150 --invoice inv-1=100 --note cn-1=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			invoiceLines, err := parseLines(invoices, "invoice_id")
			if err != nil {
				return err
			}
			noteLines, err := parseLines(notes, "note_id")
			if err != nil {
				return err
			}
			return c.run(cmd, http.MethodPost, "/api/v1/payments", map[string]any{
				"direction":             direction,
				"payment_date":          date,
				"counterparty_id":       counterparty,
				"bank_account_id":       bankAccount,
				"amount":                amt,
				"allocations":           invoiceLines,
				"credit_or_debit_notes": noteLines,
			})
		},
	}
	allocateCmd.Flags().StringVar(&direction, "direction", "receipt", "receipt or disbursement")
	allocateCmd.Flags().StringVar(&date, "date", time.Now().UTC().Format("2006-01-02"), "Payment date")
	allocateCmd.Flags().StringVar(&counterparty, "counterparty", "", "Counterparty ID")
	allocateCmd.Flags().StringVar(&bankAccount, "bank", "", "Bank account ID")
	allocateCmd.Flags().StringVar(&amount, "amount", "", "Payment amount")
	allocateCmd.Flags().StringArrayVar(&invoices, "invoice", nil, "Invoice allocation as ID=AMOUNT, repeatable")
	allocateCmd.Flags().StringArrayVar(&notes, "note", nil, "Note allocation as ID=AMOUNT, repeatable")
	_ = allocateCmd.MarkFlagRequired("counterparty")
	_ = allocateCmd.MarkFlagRequired("amount")
	return allocateCmd
}

func newTrialBalanceCmd(c *apiClient) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Show the trial balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/trial-balance"
			if asOf != "" {
				path += "?as_of_date=" + url.QueryEscape(asOf)
			}
			return c.run(cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&asOf, "date", "", "As-of date (YYYY-MM-DD), defaults to today")
	return cmd
}

// parseLines turns ID=AMOUNT pairs into request lines, keeping their order.
func parseLines(pairs []string, idField string) ([]map[string]any, error) {
	lines := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		id, raw, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid allocation %q, want ID=AMOUNT", p)
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %q: %w", p, err)
		}
		lines = append(lines, map[string]any{idField: id, "amount": amt})
	}
	return lines, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
