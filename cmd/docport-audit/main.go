// SPDX-License-Identifier: MIT

// docport-audit renders a guide tree and audits its internal links and
// tables of contents without starting the portal.
//
// Usage:
//
//	docport-audit -root ./guide
//	docport-audit -root ./guide -json
//
// Exit codes:
//   - 0: audit clean (warnings allowed unless -strict)
//   - 1: audit found errors
//   - 2: usage or processing error
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/docport/docport/internal/audit"
	"github.com/docport/docport/internal/content"
	"github.com/docport/docport/internal/render"
)

var Version = "dev"

func main() {
	var (
		root        string
		jsonOut     bool
		strict      bool
		workers     int
		showVersion bool
	)

	flag.StringVar(&root, "root", "", "path to the guide source tree")
	flag.BoolVar(&jsonOut, "json", false, "emit the full report as JSON")
	flag.BoolVar(&strict, "strict", false, "treat warnings as failures")
	flag.IntVar(&workers, "workers", 0, "render workers (0 = GOMAXPROCS)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(Version)
		os.Exit(0)
	}

	if root == "" {
		fmt.Fprintln(os.Stderr, "Error: -root is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  docport-audit -root ./guide")
		os.Exit(2)
	}

	ctx := context.Background()

	sources, err := content.Scan(ctx, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan %s: %v\n", root, err)
		os.Exit(2)
	}

	corpus, err := content.Build(ctx, render.New(), sources, workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(2)
	}

	report, err := audit.New().Run(ctx, corpus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(2)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(2)
		}
	} else {
		printReport(report)
	}

	if report.Errors > 0 || (strict && report.Warnings > 0) {
		os.Exit(1)
	}
}

func printReport(rep *audit.Report) {
	fmt.Printf("Audited %d pages, %d internal links (%d external, %d app)\n",
		rep.Pages, rep.Links, rep.ExternalLinks, rep.AppLinks)

	for _, f := range rep.Findings {
		marker := "WARN"
		if f.Severity == audit.SeverityError {
			marker = "ERROR"
		}
		loc := f.Slug
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.Slug, f.Line)
		}
		fmt.Printf("%-5s %-20s %s: %s\n", marker, f.Check, loc, f.Detail)
	}

	if rep.Clean() {
		fmt.Println("Audit clean.")
	} else {
		fmt.Printf("%d errors, %d warnings\n", rep.Errors, rep.Warnings)
	}
}
