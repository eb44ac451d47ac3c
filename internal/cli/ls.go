package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dropshare/dropget/internal/api"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/preview"
	"github.com/dropshare/dropget/internal/resources"
	"github.com/dropshare/dropget/internal/util/filter"
	ustrings "github.com/dropshare/dropget/internal/util/strings"
)

func newLsCmd() *cobra.Command {
	var f filter.Config

	cmd := &cobra.Command{
		Use:     "ls <transfer-id>",
		Aliases: []string{"list"},
		Short:   "List the files of a transfer without downloading them",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := api.NewClient(cfg, GetLogger())
			if err != nil {
				return err
			}
			return runLs(GetContext(), cmd.OutOrStdout(), cmd.ErrOrStderr(), client, args[0], f)
		},
	}

	cmd.Flags().StringSliceVar(&f.Include, "include", nil, "Only list files matching glob patterns")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", nil, "Leave out files matching glob patterns")
	cmd.Flags().StringSliceVar(&f.Search, "search", nil, "Only list files whose name contains every term")
	return cmd
}

type transferLister interface {
	GetTransfer(ctx context.Context, id string) ([]models.FileDescriptor, error)
}

func runLs(ctx context.Context, out, errOut io.Writer, client transferLister, id string, f filter.Config) error {
	files, err := client.GetTransfer(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			fmt.Fprintf(errOut, "Transfer %q was not found.\n", id)
		}
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "The transfer holds no files.")
		return nil
	}

	table := newTable(out, "#", "Name", "Size", "Type", "Kind")
	var total int64
	shown := 0
	for i, fd := range files {
		if !f.Match(fd.Name) {
			continue
		}
		shown++
		size := "?"
		if fd.Size > 0 {
			size = resources.FormatBytes(fd.Size)
			total += fd.Size
		}
		mimeType := models.ResolveMimeType(fd.MimeType, models.MimeTypeForName(fd.Name))
		table.Append([]string{
			strconv.Itoa(i + 1),
			fd.Name,
			size,
			mimeType,
			string(preview.Classify(fd.Name, mimeType)),
		})
	}
	table.Render()

	if shown < len(files) {
		fmt.Fprintf(out, "\n%d of %s, %s known\n", shown, ustrings.Count(int64(len(files)), "file"), resources.FormatBytes(total))
		return nil
	}
	fmt.Fprintf(out, "\n%s, %s known\n", ustrings.Count(int64(len(files)), "file"), resources.FormatBytes(total))
	return nil
}

func newInspectCmd() *cobra.Command {
	var maxChars int

	cmd := &cobra.Command{
		Use:   "inspect <path> [path...]",
		Short: "Show how local files would be classified and previewed",
		Long: `Show the kind, type and text preview of local files, exactly as they
would appear for downloaded files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), GetLogger(), args, maxChars)
		},
	}

	cmd.Flags().IntVar(&maxChars, "max-chars", constants.PreviewMaxChars, "Characters of text to show")
	return cmd
}

func runInspect(out io.Writer, logger *logging.Logger, paths []string, maxChars int) error {
	gen := preview.NewGenerator(maxChars, logger)

	failed := 0
	for _, p := range paths {
		src, err := models.NewLocalSource(p)
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n\n", p, err)
			failed++
			continue
		}
		pv, err := gen.FromSource(src)
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n\n", src.Name(), err)
			failed++
			continue
		}

		fmt.Fprintf(out, "── %s\n", src.Name())
		fmt.Fprintf(out, "   kind: %s  type: %s  size: %s\n", pv.Kind, src.MimeType(), resources.FormatBytes(src.SizeHint()))
		if pv.Text != "" {
			fmt.Fprintln(out, pv.Text)
		}
		fmt.Fprintln(out)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %s could not be inspected", failed, len(paths), ustrings.Pluralize("file", int64(len(paths))))
	}
	return nil
}

// newTable returns a borderless left-aligned table.
func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
