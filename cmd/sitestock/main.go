package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"sitestock/internal"
	"sitestock/internal/config"
	"sitestock/internal/connectors"
	imapconnector "sitestock/internal/connectors/imap"
	"sitestock/internal/errs"
	"sitestock/internal/export"
	"sitestock/internal/logging"
	"sitestock/internal/pipeline"
	"sitestock/internal/reconcile"
	"sitestock/internal/sheet"
	"sitestock/internal/storage"
	"sitestock/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx := context.Background()
	cmd := os.Args[1]
	switch cmd {
	case "project:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "project name")
		_ = fs.Parse(os.Args[2:])
		p, err := db.CreateProject(*name)
		must(err)
		fmt.Printf("project created id=%d name=%s\n", p.ID, p.Name)
	case "project:list":
		projects, err := db.ListProjects()
		must(err)
		w := table()
		fmt.Fprintln(w, "ID\tNAME")
		for _, p := range projects {
			fmt.Fprintf(w, "%d\t%s\n", p.ID, p.Name)
		}
		must(w.Flush())
	case "plan:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		file := fs.String("file", "", "bill of materials (.xlsx, .csv, .html)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		p := mustProject(db, *projectID)
		materials, err := readPlan(*file)
		must(err)
		if len(materials) == 0 {
			must(&errs.EmptyInputError{Input: "plan rows"})
		}
		n, err := db.UpsertMaterials(p.ID, materials)
		must(err)
		fmt.Printf("plan imported project=%d materials=%d\n", p.ID, n)
	case "plan:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		_ = fs.Parse(os.Args[2:])
		p := mustProject(db, *projectID)
		materials, err := db.ListMaterials(p.ID)
		must(err)
		w := table()
		fmt.Fprintln(w, "ID\tNAME\tUNIT\tPLANNED")
		for _, m := range materials {
			fmt.Fprintf(w, "%d\t%s\t%s\t%g\n", m.ID, m.Name, m.Unit, m.PlannedQty)
		}
		must(w.Flush())
	case "stock:set-url":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		url := fs.String("url", "", "stock sheet url")
		_ = fs.Parse(os.Args[2:])
		p := mustProject(db, *projectID)
		must(db.SetLastStockURL(p.ID, *url))
		fmt.Printf("stock url saved project=%d\n", p.ID)
	case "stock:reconcile":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		url := fs.String("url", "", "stock sheet url (defaults to the saved one)")
		file := fs.String("file", "", "local stock sheet instead of a url")
		threshold := fs.Int("threshold", 0, "match threshold 1..100 (defaults to STOCK_MATCH_THRESHOLD)")
		out := fs.String("out", "", "optional xlsx output path")
		_ = fs.Parse(os.Args[2:])
		p := mustProject(db, *projectID)

		ref := strings.TrimSpace(*file)
		if ref == "" {
			ref = strings.TrimSpace(*url)
			if ref == "" {
				saved, err := db.LastStockURL(p.ID)
				must(err)
				ref = saved
			}
			if ref == "" {
				must(&errs.EmptyInputError{Input: "stock sheet url"})
			}
		}

		plan, err := db.PlannedMaterials(p.ID)
		must(err)

		loader := sheet.NewLoader(cfg, driveExporter(ctx, cfg, log), log)
		svc := reconcile.NewService(loader, db, cfg, log)
		res, err := svc.Run(ctx, reconcile.Request{ProjectID: p.ID, StockRef: ref, Plan: plan, Threshold: *threshold})
		must(err)
		if *file == "" {
			must(db.SetLastStockURL(p.ID, ref))
		}

		printReconciliation(res.Table)
		if strings.TrimSpace(*out) != "" {
			must(export.Reconciliation(res.Table, *out))
			fmt.Printf("exported %d rows to %s\n", len(res.Table.Rows), *out)
		}
	case "shipment:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		name := fs.String("name", "", "material name")
		qty := fs.String("qty", "", "received quantity")
		unit := fs.String("unit", "", "unit")
		supplier := fs.String("supplier", "", "supplier")
		date := fs.String("date", "", "received date YYYY-MM-DD (defaults to today)")
		_ = fs.Parse(os.Args[2:])
		value, ok := util.ParseNumber(*qty)
		if strings.TrimSpace(*name) == "" || !ok {
			must(fmt.Errorf("--name and a numeric --qty are required"))
		}
		item := internal.NoteItem{
			LineNo:  1,
			Source:  internal.SourceManual,
			RawLine: strings.TrimSpace(fmt.Sprintf("%s %s %s", *name, *qty, *unit)),
			Name:    util.StringPtr(*name),
			Qty:     util.FloatPtr(value),
		}
		if u := strings.TrimSpace(*unit); u != "" {
			item.Unit = util.StringPtr(util.NormalizeUnit(u))
		}
		intake := pipeline.NewIntakeService(db, cfg, log)
		res, err := intake.Import(pipeline.ImportRequest{
			ProjectID:  mustProject(db, *projectID).ID,
			Items:      []internal.NoteItem{item},
			Supplier:   *supplier,
			ReceivedAt: *date,
		})
		must(err)
		fmt.Printf("shipment recorded matched=%d unmatched=%d\n", res.Matched, res.Unmatched)
	case "shipment:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		input := fs.String("input", "", "file path, or literal text for --type=text|html")
		inType := fs.String("type", "file", "file|xlsx|pdf|eml|txt|htm|text|html")
		supplier := fs.String("supplier", "", "supplier")
		date := fs.String("date", "", "received date YYYY-MM-DD (defaults to today)")
		noteRef := fs.String("note", "", "delivery note reference; importing it again replaces its lines")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		p := mustProject(db, *projectID)
		items, err := pipeline.ExtractItemsFromInput(*inType, *input)
		must(err)
		ref := *noteRef
		if ref == "" && *inType != "text" && *inType != "html" {
			ref = "file:" + *input
		}
		intake := pipeline.NewIntakeService(db, cfg, log)
		res, err := intake.Import(pipeline.ImportRequest{ProjectID: p.ID, Items: items, NoteRef: ref, Supplier: *supplier, ReceivedAt: *date})
		must(err)
		fmt.Printf("delivery note imported lines=%d matched=%d unmatched=%d skipped=%d\n", res.Lines, res.Matched, res.Unmatched, res.Skipped)
	case "ledger:summary":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		out := fs.String("out", "", "optional xlsx output path")
		_ = fs.Parse(os.Args[2:])
		p := mustProject(db, *projectID)
		materials, err := db.ListMaterials(p.ID)
		must(err)
		shipments, err := db.ListShipments(p.ID)
		must(err)
		rows := pipeline.Summarize(materials, shipments)
		w := table()
		fmt.Fprintln(w, "MATERIAL\tUNIT\tPLANNED\tRECEIVED\tOUTSTANDING\tSHIPMENTS")
		for _, r := range rows {
			name := r.Name
			if r.MaterialID == nil {
				name += " (unplanned)"
			}
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%g\t%d\n", name, r.Unit, r.Planned, r.Received, r.Outstanding, r.Shipments)
		}
		must(w.Flush())
		if strings.TrimSpace(*out) != "" {
			must(export.Ledger(rows, *out))
			fmt.Printf("exported %d rows to %s\n", len(rows), *out)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		label := fs.String("label", cfg.DeliveryMailLabel, "mailbox")
		max := fs.Int("max", cfg.DeliveryMailFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := imapconnector.NewConnector(cfg)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn, log)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done fetched=%d new=%d known=%d duplicates=%d\n", result.Fetched, result.New, result.Known, result.Duplicates)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		projectID := fs.Int("project", cfg.DeliveryProjectID, "project id")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		p := mustProject(db, *projectID)
		intake := pipeline.NewIntakeService(db, cfg, log)
		if strings.TrimSpace(*messageID) != "" {
			res, err := intake.ProcessByProviderMessageID(imapconnector.Provider, *messageID, p.ID)
			must(err)
			fmt.Printf("processed email id=%d note=%t lines=%d\n", res.EmailID, res.IsNote, res.Import.Lines)
			return
		}
		emails, lines, err := intake.ProcessPending(*batch, p.ID)
		must(err)
		fmt.Printf("processed pending emails=%d lines=%d\n", emails, lines)
	default:
		usage()
		os.Exit(1)
	}
}

// driveExporter returns nil when Google credentials are not configured, so
// sheets are fetched over plain HTTP.
func driveExporter(ctx context.Context, cfg config.Config, log zerolog.Logger) sheet.Exporter {
	if !cfg.GoogleConfigured() {
		return nil
	}
	exp, err := sheet.NewDriveExporter(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("drive exporter unavailable, falling back to http")
		return nil
	}
	return exp
}

// readPlan parses a bill of materials; csv and html plans go through the
// headerless sheet decoder.
func readPlan(path string) ([]internal.MaterialRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return pipeline.ParsePlanXLSX(blob)
	default:
		rows, err := sheet.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return pipeline.ParsePlanTable(rows), nil
	}
}

func printReconciliation(t reconcile.Table) {
	found, missing := t.Found(), t.NotFound()
	fmt.Printf("found %d of %d planned materials (threshold %d)\n", len(found), len(t.Rows), t.Threshold)
	w := table()
	fmt.Fprintln(w, "MATERIAL\tUNIT\tQTY\tSTORES\tSHELVES\tSCORE")
	for _, r := range append(found, missing...) {
		fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%s\t%d\n", r.PlannedName, r.Unit, r.Quantity, r.Stores, r.Shelves, r.Score)
	}
	must(w.Flush())
}

func mustProject(db *storage.DB, id int) internal.Project {
	if id <= 0 {
		must(fmt.Errorf("--project is required"))
	}
	p, err := db.MustProject(id)
	must(err)
	return p
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func usage() {
	fmt.Println("usage: sitestock <command>")
	fmt.Println("commands:")
	fmt.Println("  project:add --name=...")
	fmt.Println("  project:list")
	fmt.Println("  plan:import --project=1 --file=plan.xlsx")
	fmt.Println("  plan:list --project=1")
	fmt.Println("  stock:set-url --project=1 --url=...")
	fmt.Println("  stock:reconcile --project=1 [--url=...|--file=...] [--threshold=80] [--out=./out/reconcile.xlsx]")
	fmt.Println("  shipment:add --project=1 --name=... --qty=10 [--unit=...] [--supplier=...] [--date=YYYY-MM-DD]")
	fmt.Println("  shipment:import --project=1 --input=note.pdf [--type=file|xlsx|pdf|eml|txt|htm|text|html] [--note=...]")
	fmt.Println("  ledger:summary --project=1 [--out=./out/ledger.xlsx]")
	fmt.Println("  mail:fetch [--label=INBOX] [--max=20]")
	fmt.Println("  mail:process --project=1 [--messageId=...] [--batch=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", errs.UserMessage(err))
	os.Exit(1)
}
