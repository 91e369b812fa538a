package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"invoicemail/internal/config"
	"invoicemail/internal/connectors"
	gmailconnector "invoicemail/internal/connectors/gmail"
	"invoicemail/internal/listener"
	"invoicemail/internal/pipeline"
	"invoicemail/internal/storage"
	"invoicemail/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)
	util.SetupLogging(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "auth:gmail":
		_, err := gmailconnector.Authorize(ctx, cfg, os.Stdin, os.Stdout)
		must(err)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		query := fs.String("query", "", "search query (gmail syntax, or IMAP subject text)")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg)
		defer db.Close()
		conn, err := connectors.New(ctx, cfg, *provider)
		must(err)
		req := connectors.DefaultRequest(cfg, *provider, *label, *max)
		if strings.TrimSpace(*query) != "" {
			req.Query = *query
		}
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn).FetchAndStore(ctx, req)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (empty for all)")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg)
		defer db.Close()
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			if *provider == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			res, err := processor.ProcessByProviderMessageID(connectors.NormalizeProvider(*provider), *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s items=%d\n", res.EmailID, res.Status, res.Items)
			return
		}
		res, err := processor.ProcessPending(*batch, connectors.NormalizeProvider(*provider))
		must(err)
		fmt.Printf("processed pending processed=%d skipped=%d failed=%d items=%d\n", res.Processed, res.Skipped, res.Failed, res.Items)
	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (empty for all)")
		jsonPath := fs.String("json", "", "output json path")
		xlsxPath := fs.String("xlsx", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg)
		defer db.Close()
		res, err := pipeline.NewExportService(db, cfg).ExportAll(connectors.NormalizeProvider(*provider), *jsonPath, *xlsxPath)
		must(err)
		fmt.Printf("exported records=%d rows=%d json=%s xlsx=%s\n", res.Records, res.Rows, res.JSONPath, res.XLSXPath)
	case "mail:listen":
		db := openDB(cfg)
		defer db.Close()
		must(listener.NewService(db, cfg).Run(ctx))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "comma-separated .html/.eml paths")
		subject := fs.String("subject", "", "subject line (overrides .eml subject)")
		output := fs.String("output", "", "output xlsx path")
		jsonPath := fs.String("json", "", "optional output json path")
		mode := fs.String("mode", string(cfg.OrderNumberMode), "subject|order_tag")
		_ = fs.Parse(os.Args[2:])

		paths := splitInputs(*input, fs.Args())
		if len(paths) == 0 || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		orderMode := config.OrderNumberMode(strings.ToLower(strings.TrimSpace(*mode)))
		must(orderMode.Validate())

		records, err := pipeline.NewExtractor(orderMode).ExtractFromFiles(paths, *subject, cfg.ExtractWorkers)
		must(err)
		rows := pipeline.Flatten(records)
		must(pipeline.ExportRowsToXLSX(rows, cfg.InvoiceSource, *output))
		if *jsonPath != "" {
			must(pipeline.WriteJSONSnapshot(records, *jsonPath))
		}
		fmt.Printf("run done records=%d rows=%d output=%s\n", len(records), len(rows), *output)
	default:
		usage()
		os.Exit(1)
	}
}

func openDB(cfg config.Config) *storage.DB {
	db, err := storage.Open(cfg.DBPath)
	must(err)
	return db
}

func splitInputs(input string, rest []string) []string {
	var out []string
	for _, p := range append(strings.Split(input, ","), rest...) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func usage() {
	fmt.Println("usage: invoicemail <command>")
	fmt.Println("commands:")
	fmt.Println("  auth:gmail")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX [--query=...] --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  export [--provider=gmail|imap] [--json=...] [--xlsx=...]")
	fmt.Println("  mail:listen")
	fmt.Println("  run --input=a.html,b.eml [--subject=...] --output=out.xlsx [--json=out.json] [--mode=subject|order_tag]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
