package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/staticgen/internal/contenttype"
	"github.com/JakeFAU/staticgen/internal/crawler"
)

// newTypesCmd creates the 'types' subcommand, which prints the content-type
// table used to serve and name artifacts.
func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Print the effective content-type table",
		RunE: withCleanup(func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			serve := cfg.SSG.ContentTypes
			if len(serve) == 0 {
				serve = contenttype.DefaultWebTypes
			}
			fix := cfg.SSG.FixExtension
			if len(fix) == 0 {
				fix = crawler.DefaultFixExtension
			}
			merged := contenttype.Merge(serve, fix)

			mediaTypes := make([]string, 0, len(merged))
			for mt := range merged {
				mediaTypes = append(mediaTypes, mt)
			}
			sort.Strings(mediaTypes)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTENT TYPE\tEXTENSION\tRENAMED")
			for _, mt := range mediaTypes {
				_, renamed := fix[mt]
				fmt.Fprintf(w, "%s\t%s\t%t\n", mt, merged[mt], renamed)
			}
			return w.Flush()
		}),
	}
}
