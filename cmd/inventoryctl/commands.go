package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/assetscan/internal/config"
	"github.com/mamadbah2/assetscan/internal/service/inventory"
)

const stampLayout = "2006-01-02 15:04"

func newLayoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the resolved sheet and column layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout := cfg.Layout
			out := cmd.OutOrStdout()

			ids := make([]string, 0, len(layout.IDColumns))
			for _, col := range layout.IDColumns {
				ids = append(ids, config.ColumnName(col))
			}

			rows := [][]string{
				{"Inventory Sheet", layout.InventorySheet},
				{"Unmatched Sheet", layout.UnmatchedSheet},
				{"Asset ID", strings.Join(ids, ", ")},
			}
			for _, field := range layout.Fields() {
				rows = append(rows, []string{field.Label, config.ColumnName(field.Index)})
			}
			rows = append(rows,
				[]string{"Count Rows", fmt.Sprintf("%d-%d", layout.StartRow, layout.EndRow)},
				[]string{"Total Count", strconv.Itoa(layout.TotalCount)},
			)
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, nil))

			for _, warning := range layout.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview inventory rows through the configured columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.workbookStore(cmd.Context())
			if err != nil {
				return err
			}
			layout := ctx.config.Layout

			wb, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			sheet, ok := wb.Sheet(layout.InventorySheet)
			if !ok {
				return fmt.Errorf("%w: %q (sheets: %s)", inventory.ErrSectionMissing, layout.InventorySheet, strings.Join(wb.SheetNames(), ", "))
			}

			headers := []string{"Row", "Asset ID"}
			for _, field := range layout.Fields() {
				headers = append(headers, field.Label)
			}

			var rows [][]string
			for row := layout.StartRow - 1; row < sheet.Len() && len(rows) < limit; row++ {
				asset := inventory.AssetAt(sheet, layout, row)
				line := []string{
					strconv.Itoa(asset.RowNumber),
					firstNonEmpty(asset.Identifiers),
					asset.Name,
					asset.Description,
					asset.Status,
					asset.Location,
					asset.Room,
					asset.Marked,
				}
				rows = append(rows, line)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "rows", "n", 10, "Number of rows to show")
	return cmd
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Count processed assets in the configured row range",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.inventoryService(cmd.Context())
			if err != nil {
				return err
			}
			progress, err := svc.Progress(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed: %d of %d\n", progress.MarkedCount, progress.TotalCount)

			if ctx.config.Audit.Backend == config.AuditNone {
				return nil
			}
			fmt.Fprintln(out, lastSnapshotLine(cmd.Context(), ctx))
			return nil
		},
	}
}

// lastSnapshotLine describes the newest recorded snapshot. Audit failures are
// reported inline; the live count above is already printed.
func lastSnapshotLine(ctx context.Context, cc *commandContext) string {
	history, err := cc.auditHistory(ctx)
	if err != nil {
		return fmt.Sprintf("Last snapshot: unavailable (%v)", err)
	}
	defer func() { _ = history.Close(ctx) }()

	snapshot, ok, err := history.LatestProgress(ctx)
	switch {
	case err != nil:
		return fmt.Sprintf("Last snapshot: unavailable (%v)", err)
	case !ok:
		return "Last snapshot: none"
	default:
		return fmt.Sprintf("Last snapshot: %d of %d at %s",
			snapshot.MarkedCount, snapshot.TotalCount, snapshot.TakenAt.In(time.Local).Format(stampLayout))
	}
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Look up a barcode without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.inventoryService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Found {
				fmt.Fprintf(out, "%s: not in inventory\n", strings.TrimSpace(args[0]))
				return nil
			}
			marked := "no"
			if result.Marked {
				marked = "yes"
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, [][]string{
				{"Row", strconv.Itoa(result.RowNumber)},
				{"Asset ID", result.Identifier},
				{"Name", result.Name},
				{"Description", result.Description},
				{"Marked", marked},
			}, nil))
			return nil
		},
	}
}

func newUnmatchedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched",
		Short: "List barcodes that were not found in the inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.inventoryService(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := svc.ListUnmatched(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No unmatched barcodes")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Identifier, e.Location, e.Room})
			}
			fmt.Fprintln(out, renderTable([]string{"Barcode", "Location", "Room"}, rows, nil))
			return nil
		},
	}
}

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var keep int

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the workbook into the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.inventoryService(cmd.Context())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = ctx.config.Store.BackupDir
			}
			if dir == "" {
				return fmt.Errorf("backup directory required (--dir or BACKUP_DIR)")
			}
			if !cmd.Flags().Changed("keep") {
				keep = ctx.config.Store.BackupKeep
			}

			path, err := svc.BackupWorkbook(cmd.Context(), dir, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Backup directory (defaults to BACKUP_DIR)")
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of backups to keep (defaults to BACKUP_KEEP)")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans from the audit backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := ctx.auditHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = history.Close(cmd.Context()) }()

			events, err := history.RecentScans(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No scans recorded")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, e := range events {
				row := ""
				if e.RowNumber > 0 {
					row = strconv.Itoa(e.RowNumber)
				}
				rows = append(rows, []string{
					e.ScannedAt.In(time.Local).Format(stampLayout),
					e.Identifier,
					e.Status.Label(),
					string(e.Outcome),
					row,
					e.Label,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Scanned", "Barcode", "Status", "Outcome", "Row", "Asset"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show")
	return cmd
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
