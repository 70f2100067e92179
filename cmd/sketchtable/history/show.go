package historycmder

import (
	"context"
	"fmt"
	"io"

	"github.com/papercomputeco/sketchtable/pkg/cliui"
	"github.com/papercomputeco/sketchtable/pkg/storage"
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

func (c *historyCommander) runShow(ctx context.Context, out io.Writer, driver storage.Driver, id string) error {
	rec, err := driver.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cliui.HeaderStyle.Render("Analysis "+rec.ID))
	printField(out, "State", rec.State)
	printField(out, "Model", rec.Model)
	printField(out, "Image", rec.ImagePath)
	printField(out, "Prompt", rec.Prompt)
	printField(out, "Started", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	printField(out, "Duration", cliui.FormatDuration(rec.Duration()))
	if rec.Error != "" {
		printField(out, "Error", cliui.WarnStyle.Render(rec.Error))
	}
	fmt.Fprintln(out)

	if rec.Text != "" {
		rendered, err := cliui.RenderMarkdown(rec.Text)
		if err != nil {
			c.logger.Debug("rendering markdown", "error", err)
		}
		fmt.Fprintln(out, rendered)
	}

	if len(rec.TableRows) > 0 {
		t := table.Table{Header: rec.TableHeader, Rows: rec.TableRows, Columns: len(rec.TableRows[0])}
		fmt.Fprintln(out, cliui.RenderTable(t.Titles(), t.Rectangular()))
	}

	fmt.Fprintln(out, cliui.DimStyle.Render(usage.State{Tokens: rec.Tokens, CostUSD: rec.CostUSD}.Label()))
	return nil
}

func printField(out io.Writer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render(key+":"), cliui.ValueStyle.Render(value))
}
