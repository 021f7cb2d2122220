// Command expenselens-scan is a headless capture client: it drives the
// scan-to-confirm workflow against a spool-directory capture device, a
// vision extraction backend, and a remote expenselens server.
package main

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/schollz/progressbar/v3"

	"github.com/expenselens/expenselens/internal/capture"
	"github.com/expenselens/expenselens/internal/receipt"
	"github.com/expenselens/expenselens/internal/reconcile"
	"github.com/expenselens/expenselens/internal/report"
	"github.com/expenselens/expenselens/internal/scanning"
	"github.com/expenselens/expenselens/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("expenselens-scan")
	var (
		apiURL      = fs.StringLong("api", "http://localhost:8080", "Base URL of the expenselens server")
		spoolDir    = fs.StringLong("spool", "./frames", "Directory the capture device reads frames from")
		backendName = fs.StringLong("backend", "gemini", "Extraction backend: 'gemini' or 'openai'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set EXPENSELENS_SCAN_GEMINI_KEY)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		openaiKey   = fs.StringLong("openai-key", "", "OpenAI-compatible API key")
		openaiURL   = fs.StringLong("openai-url", "", "OpenAI-compatible base URL (empty for api.openai.com)")
		openaiModel = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI-compatible model name")
		currency    = fs.StringLong("currency", receipt.DefaultCurrency, "Fallback currency code for new receipts")
		settleMs    = fs.IntLong("settle-ms", 400, "Visual settling delay after extraction resolves")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSELENS_SCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var backend scanning.Backend
	var err error
	switch *backendName {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key or GEMINI_API_KEY")
			os.Exit(1)
		}
		backend, err = scanning.NewGemini(apiKey, *geminiModel)
	case "openai":
		backend, err = scanning.NewOpenAI(*openaiKey, *openaiURL, *openaiModel)
	default:
		slog.Error("Invalid backend", "backend", *backendName, "valid", "gemini or openai")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize extraction backend", "error", err)
		os.Exit(1)
	}
	extractor := scanning.NewClient(backend)
	defer extractor.Close()

	device, err := capture.NewDirDevice(*spoolDir)
	if err != nil {
		slog.Error("Failed to initialize capture device", "error", err)
		os.Exit(1)
	}

	store := receipt.NewRemoteStore(*apiURL)

	defaults := reconcile.StandardDefaults()
	defaults.Currency = receipt.NormalizeCurrency(*currency)

	machine := session.New(device, extractor, store,
		session.WithDefaults(defaults),
		session.WithSettleDelay(time.Duration(*settleMs)*time.Millisecond),
	)

	fmt.Printf("expenselens-scan %s — server %s, spool %s\n", version, *apiURL, *spoolDir)
	fmt.Println("Commands: list, summary, scan, snap, retake, show, set <field> <value>, confirm, close, delete <id>, quit")

	repl(machine, store)
}

func repl(machine *session.Machine, store *receipt.RemoteStore) {
	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("[%s]> ", machine.State())
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "quit", "exit":
			return
		case "list":
			printRecords(ctx, machine)
		case "summary":
			printSummary(ctx, store)
		case "scan":
			if err := machine.StartCapture(); err != nil {
				fmt.Println("capture unavailable:", err)
				fmt.Println("fix the device, then 'scan' to retry or 'close' to go back")
			}
		case "snap":
			snap(ctx, machine)
		case "retake":
			if err := machine.Retake(); err != nil {
				fmt.Println("error:", err)
			}
		case "show":
			printForm(machine)
		case "set":
			setField(machine, arg)
		case "confirm":
			id, err := machine.Confirm(ctx)
			if err != nil {
				fmt.Println("save failed, your edits are kept:", err)
				continue
			}
			fmt.Println("saved", id)
			printRecords(ctx, machine)
		case "close":
			if err := machine.CloseScanner(); err != nil {
				fmt.Println("error:", err)
			}
		case "delete":
			if arg == "" {
				fmt.Println("usage: delete <id>")
				continue
			}
			if err := machine.Delete(ctx, arg); err != nil {
				fmt.Println("delete failed:", err)
				continue
			}
			printRecords(ctx, machine)
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

// snap takes a snapshot and renders the cosmetic progress bar until the
// machine reaches review.
func snap(ctx context.Context, machine *session.Machine) {
	if err := machine.Capture(ctx); err != nil {
		fmt.Println("error:", err)
		return
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionClearOnFinish(),
	)
	for machine.State() == session.StateScanning {
		bar.Set(int(machine.Progress() * 100))
		time.Sleep(100 * time.Millisecond)
	}
	bar.Finish()

	if machine.State() == session.StateReview {
		printForm(machine)
	}
}

func printRecords(ctx context.Context, machine *session.Machine) {
	records, err := machine.Records(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("no receipts yet")
		return
	}
	symbol := receipt.CurrencySymbol(report.DisplayCurrency(records))
	for _, r := range records {
		tax := "-"
		if r.Tax != nil {
			tax = fmt.Sprintf("%s%.2f", symbol, *r.Tax)
		}
		fmt.Printf("%s  %s  %s%.2f  tax %s  %-14s  %s\n",
			r.ID, r.Date, symbol, r.Amount, tax, r.Category, r.Merchant)
	}
}

func printSummary(ctx context.Context, store *receipt.RemoteStore) {
	raw, err := store.Summary(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	var s report.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		fmt.Println("error decoding summary:", err)
		return
	}
	fmt.Printf("receipts: %d\n", s.Count)
	fmt.Printf("total:    %s%.2f\n", s.Symbol, s.Total)
	fmt.Printf("tax est.: %s%.2f\n", s.Symbol, s.TaxEstimate)
	fmt.Printf("average:  %s%.2f\n", s.Symbol, s.Average)
	for _, p := range s.Chart {
		fmt.Printf("  %-20s %.2f\n", p.Label, p.Value)
	}
}

func printForm(machine *session.Machine) {
	form := machine.Form()
	if form == nil {
		fmt.Println("no form to show")
		return
	}
	fmt.Printf("merchant: %s\n", form.Merchant)
	fmt.Printf("date:     %s\n", form.Date)
	fmt.Printf("amount:   %.2f\n", form.Amount)
	if form.Tax != nil {
		fmt.Printf("tax:      %.2f\n", *form.Tax)
	} else {
		fmt.Printf("tax:      (not stated)\n")
	}
	fmt.Printf("currency: %s\n", form.Currency)
	fmt.Printf("category: %s\n", form.Category)
}

// setField applies one form edit. Malformed numbers are coerced to zero so
// the form stays editable instead of rejecting input.
func setField(machine *session.Machine, arg string) {
	form := machine.Form()
	if form == nil {
		fmt.Println("nothing under review")
		return
	}
	field, value, ok := strings.Cut(arg, " ")
	if !ok && field != "tax" {
		fmt.Println("usage: set <merchant|date|amount|tax|currency|category> <value>")
		return
	}

	switch field {
	case "merchant":
		form.Merchant = value
	case "date":
		form.Date = value
	case "amount":
		form.Amount = parseAmount(value)
	case "tax":
		if value == "" || value == "none" {
			form.ClearTax()
		} else {
			form.SetTax(parseAmount(value))
		}
	case "currency":
		form.Currency = strings.ToUpper(value)
	case "category":
		form.Category = value
	default:
		fmt.Println("unknown field:", field)
	}
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
