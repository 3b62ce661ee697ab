package doc

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/lendlord/lendlord-sim/lend-service/metrics"
)

type Documentor interface {
	Document() []metrics.DocumentedMetric
}

func NewSubcommands(m Documentor) cli.Commands {
	return cli.Commands{
		{
			Name:  "metrics",
			Usage: "Dumps a list of supported metrics to stdout",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Value: "markdown",
					Usage: "Output format (json|markdown)",
				},
			},
			Action: func(ctx *cli.Context) error {
				return Write(ctx.App.Writer, m.Document(), ctx.String("format"))
			},
		},
	}
}

// Write renders the documented metrics as a markdown table or as json.
func Write(w io.Writer, supportedMetrics []metrics.DocumentedMetric, format string) error {
	switch format {
	case "markdown":
		table := tablewriter.NewWriter(w)
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"Metric", "Description", "Labels", "Type"})
		for _, metric := range supportedMetrics {
			table.Append([]string{
				fmt.Sprintf("`%s`", metric.Name),
				metric.Help,
				strings.Join(metric.Labels, ","),
				metric.Type,
			})
		}
		table.Render()
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(supportedMetrics)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
