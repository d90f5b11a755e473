package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	accounts "github.com/ia-nocode/user-roles-v4"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func useColors() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func renderProfiles(w io.Writer, profiles []accounts.Profile, region string) error {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{p.RecordID, p.IdentityID, p.Email, p.FullName(), string(p.Role), accounts.FormatMobile(p.Mobile, region)})
	}

	table := newTable(w)
	table.Header([]string{"id", "uid", "email", "name", "role", "mobile"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func renderReport(w io.Writer, r accounts.ReconcileReport) error {
	fmt.Fprintf(w, "checked %d records\n", r.Checked)

	rows := [][]string{}
	for _, p := range r.Orphaned {
		rows = append(rows, []string{"orphaned record", p.RecordID, p.IdentityID, p.Email})
	}
	for _, identity := range r.Unprofiled {
		rows = append(rows, []string{"identity without record", "", identity.ID, identity.Email})
	}

	unchecked := make([]string, 0, len(r.Unchecked))
	for id := range r.Unchecked {
		unchecked = append(unchecked, id)
	}
	sort.Strings(unchecked)
	for _, id := range unchecked {
		rows = append(rows, []string{"unchecked", id, "", r.Unchecked[id]})
	}

	if len(rows) == 0 {
		return nil
	}

	table := newTable(w)
	table.Header([]string{"status", "id", "uid", "detail"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func printNotification(w io.Writer, n accounts.Notification) {
	c := color.New(color.FgGreen)
	mark := "✓"
	switch n.Level {
	case accounts.LevelWarning:
		c, mark = color.New(color.FgYellow), "⚠"
	case accounts.LevelError:
		c, mark = color.New(color.FgRed), "✗"
	}
	if !useColors() {
		c.DisableColor()
	}

	c.Fprintf(w, "%s %s\n", mark, n.Message)

	fields := make([]string, 0, len(n.Fields))
	for field := range n.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(w, "  %s: %s\n", field, n.Fields[field])
	}
	if n.RequiresReconciliation {
		color.New(color.Bold).Fprintf(w, "  identity %s needs manual reconciliation\n", n.IdentityID)
	}
}
