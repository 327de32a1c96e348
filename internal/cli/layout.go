package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/specialistvlad/flowcanvas/internal/config"
	"github.com/specialistvlad/flowcanvas/internal/hcl_adapter"
	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/spf13/cobra"
)

func layoutCmd(outW io.Writer) *cobra.Command {
	var (
		members     int
		configPaths []string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the container geometry of a group with N members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if members < 0 {
				return usageError("invalid members: must not be negative")
			}
			m, err := hcl_adapter.NewLoader().Load(cmd.Context(), configPaths...)
			if err != nil {
				return err
			}
			if err := config.Validate(m); err != nil {
				return err
			}

			c := layout.Compute(m.Layout, members)
			if asJSON {
				enc := json.NewEncoder(outW)
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}
			return printContainer(outW, members, c)
		},
	}

	cmd.Flags().IntVarP(&members, "members", "n", 2, "Number of attachments in the group")
	cmd.Flags().StringSliceVarP(&configPaths, "config", "c", nil, "HCL config files or directories with a layout block")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func printContainer(w io.Writer, members int, c layout.Container) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "members:\t%d\n", members)
	fmt.Fprintf(tw, "size:\t%g x %g\n", c.Size.Width, c.Size.Height)
	fmt.Fprintf(tw, "items per row:\t%d\n", c.ItemsPerRow)
	fmt.Fprintf(tw, "rows:\t%d\n", c.Rows)
	for i, s := range c.Slots {
		fmt.Fprintf(tw, "slot %d:\t(%g, %g)\n", i+1, s.X, s.Y)
	}
	return tw.Flush()
}
