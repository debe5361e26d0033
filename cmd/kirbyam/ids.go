package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// idTables is the JSON shape the multiworld server reads.
type idTables struct {
	ItemNameToID     map[string]int64    `json:"item_name_to_id"`
	LocationNameToID map[string]int64    `json:"location_name_to_id"`
	ItemGroups       map[string][]string `json:"item_name_groups"`
	LocationGroups   map[string][]string `json:"location_name_groups"`
}

func newIDsCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Print the item and location ids",
		Long: `Print the stable ids allocated for every item and location.

Examples:
  kirbyam ids
  kirbyam ids --kind locations
  kirbyam ids --json > kirbyam_ids.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(idTables{
					ItemNameToID:     reg.ItemNameToID(),
					LocationNameToID: reg.LocationNameToID(),
					ItemGroups:       reg.ItemGroups(),
					LocationGroups:   reg.LocationGroups(),
				})
			}

			tables := map[string]map[string]int64{}
			switch kind {
			case "items":
				tables["items"] = reg.ItemNameToID()
			case "locations":
				tables["locations"] = reg.LocationNameToID()
			case "":
				tables["items"] = reg.ItemNameToID()
				tables["locations"] = reg.LocationNameToID()
			default:
				return fmt.Errorf("--kind %q is invalid; valid values: items, locations", kind)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, k := range slices.Sorted(maps.Keys(tables)) {
				fmt.Fprintf(tw, "KIND\tID\tNAME\n")
				ids := tables[k]
				names := slices.SortedFunc(maps.Keys(ids), func(x, y string) int {
					return cmp.Compare(ids[x], ids[y])
				})
				for _, n := range names {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", k, ids[n], n)
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print name to id maps and groups as JSON")
	cmd.Flags().StringVar(&kind, "kind", "", "only print items or locations")
	return cmd
}
