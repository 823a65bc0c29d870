package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"foodvote/internal/bank/loader"
)

func newInspectCmd() *cobra.Command {
	var listFoods bool
	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Decode a snapshot file and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			snap, err := loader.FromBytes(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			stats := snap.Registry.Stats()
			fmt.Fprintf(out, "Checksum:         %s\n", snap.Checksum)
			fmt.Fprintf(out, "Size:             %d bytes\n", len(snap.Raw))
			fmt.Fprintf(out, "Foods:            %d (next id %d)\n", stats.Foods, stats.NextFoodID)
			fmt.Fprintf(out, "Locations:        %d (next id %d)\n", stats.Locations, stats.NextLocationID)
			if !stats.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "Updated:          %s\n", stats.UpdatedAt.Format(time.RFC3339))
			}
			if stats.MenuDate != "" {
				fmt.Fprintf(out, "Daily menu:       %s\n", stats.MenuDate)
			}

			if listFoods {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\nID\tNAME\tLOCATION")
				for id := range snap.Foods {
					if f, ok := snap.Food(uint32(id)); ok {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", f.ID, f.Name, f.Location)
					}
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listFoods, "foods", false, "list every food in ID order")
	return cmd
}
