package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/autoimport/internal/core"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "autoimport",
		Short:             "Import manufacturer and car CSV files into the catalogue store",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.AddCommand(
		newImportCmd(a),
		newMigrateCmd(a),
		newSearchCmd(a),
		newRunsCmd(a),
		newResetCmd(a),
	)
	return root
}

type importOptions struct {
	yes       bool
	batchSize int
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import records from a CSV file",
	}
	cmd.AddCommand(
		newImportEntityCmd(a, core.EntityManufacturers),
		newImportEntityCmd(a, core.EntityCars),
	)
	return cmd
}

func newImportEntityCmd(a *app, entity core.Entity) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   string(entity) + " [path]",
		Short: fmt.Sprintf("Import %s from a CSV file", entity),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return a.runImport(cmd, entity, path, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Rows per insert batch (default: IMPORT_BATCH_SIZE)")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, entity core.Entity, path string, opts importOptions) error {
	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	p := newPrompter(cmd.InOrStdin(), out)

	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(out, "Please provide the path to your CSV file.")
		fmt.Fprintf(out, "Example: /path/to/your/%s.csv\n", entity)
		var err error
		if path, err = p.Ask("What is the path to your CSV file?"); err != nil {
			return err
		}
	}

	abs, err := resolveFile(path)
	if err != nil {
		return reportf(errOut, "File not found or is not readable at path: %s", path)
	}
	fmt.Fprintf(out, "Starting import of %s from: %s\n", entity, abs)

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if entity == core.EntityCars {
		n, err := st.CountManufacturers(ctx)
		if err != nil {
			return fmt.Errorf("count manufacturers: %w", err)
		}
		if n == 0 {
			return reportf(errOut, "No manufacturers found. Please import manufacturers before importing cars.")
		}
	}

	if !opts.yes {
		ok, err := p.Confirm(fmt.Sprintf("Do you want to proceed with importing %s from '%s'?", entity, abs), true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Import cancelled.")
			return nil
		}
	}

	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = a.cfg.Import.BatchSize
	}
	options := []core.Option{
		core.WithBatchSize(batchSize),
		core.WithProgress(progressPrinter(errOut)),
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Import.Timeout)
	defer cancel()

	var res core.ImportResult
	switch entity {
	case core.EntityCars:
		res = core.NewCarImporter(st, options...).Import(ctx, abs)
	default:
		res = core.NewManufacturerImporter(st, options...).Import(ctx, abs)
	}

	if !res.Success {
		fmt.Fprintf(errOut, "Import failed: %s\n", res.Error)
		if hint := core.FormatUserError(res.Err); hint != "" {
			fmt.Fprintln(errOut, hint)
		}
		return errReported
	}

	fmt.Fprintf(out, "%s: %d rows in %d batches (%s)\n",
		res.Message, res.Rows, res.Batches, res.Duration.Round(time.Millisecond))
	return nil
}

// resolveFile returns the absolute path of a readable regular file.
func resolveFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", err
	}
	return abs, f.Close()
}

func progressPrinter(w io.Writer) core.ProgressCallback {
	return func(p core.Progress) {
		if pct := p.Percent(); pct > 0 {
			fmt.Fprintf(w, "  %d rows written (%d%%)\n", p.Rows, pct)
			return
		}
		fmt.Fprintf(w, "  %d rows written\n", p.Rows)
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search cars by model or manufacturer name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			term := strings.Join(args, " ")

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := st.SearchCars(ctx, strings.TrimSpace(term), page, pageSize)
			if err != nil {
				return fmt.Errorf("search cars: %w", err)
			}
			writeCarPage(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", core.DefaultPageSize, "Cars per page")
	return cmd
}

func writeCarPage(w io.Writer, page *core.CarPage) {
	if len(page.Cars) == 0 {
		if page.Term != "" {
			fmt.Fprintf(w, "No cars match %q.\n", page.Term)
		} else {
			fmt.Fprintln(w, "No cars found.")
		}
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Manufacturer", "Country", "Model", "Year", "Colour"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, c := range page.Cars {
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			c.Manufacturer,
			c.Country,
			c.Model,
			strconv.Itoa(c.Year.Year()),
			c.Colour,
		})
	}
	table.Render()

	fmt.Fprintf(w, "Page %d of %d (%d cars)\n", page.Page, page.TotalPages, page.TotalRows)
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			writeRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func writeRuns(w io.Writer, runs []core.ImportRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No import runs recorded.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Started", "Entity", "File", "State", "Rows", "Batches", "Error"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range runs {
		table.Append([]string{
			r.StartedAt.Local().Format(time.DateTime),
			string(r.Entity),
			r.FileName,
			string(r.State),
			strconv.FormatInt(r.Rows, 10),
			strconv.Itoa(r.Batches),
			r.Error,
		})
	}
	table.Render()
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all cars, manufacturers and run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if !yes {
				ok, err := newPrompter(cmd.InOrStdin(), out).
					Confirm("This deletes every stored record. Continue?", false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Reset cancelled.")
					return nil
				}
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Store reset.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
