package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mwantia/fieldsync/pkg/registry"
	"github.com/spf13/cobra"
)

func NewQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the deferred upload queue",
		Long:  "List or remove the file descriptors and queued attachments stored for a record.",
	}

	cmd.AddCommand(NewQueueListCommand())
	cmd.AddCommand(NewQueueRemoveCommand())

	return cmd
}

func NewQueueListCommand() *cobra.Command {
	var longFormat bool

	cmd := &cobra.Command{
		Use:   "ls <record>",
		Short: "List the queue of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAgent()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}
			queue, err := a.Store(ctx)
			if err != nil {
				return err
			}

			stored, err := queue.ListDescriptors(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list descriptors: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tGRID\tROW\tFILES\tCONDITION")
			for _, m := range stored {
				desc := registry.FromModel(m)
				row := "-"
				if desc.IsDataGrid {
					row = fmt.Sprintf("%d/%d", desc.Row+1, desc.Count)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", desc.ID, desc.Key, desc.GridKey, row, len(desc.Files), desc.Condition)

				if longFormat {
					for _, f := range desc.Files {
						fmt.Fprintf(w, "\t  %s\t\t\t%s\t%s\n", f.Name, f.MimeType, f.URL)
					}
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&longFormat, "long", "l", false, "list the queued files of every descriptor")

	return cmd
}

func NewQueueRemoveCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rm <record> <key>",
		Short: "Remove a field from the queue",
		Long:  "Removes every descriptor stored under the field key for the record together with its queued files (needs confirmation).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordID, key := args[0], args[1]

			if !confirm {
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Remove '%s' and its queued files from record '%s'?", key, recordID),
				}
				if err := survey.AskOne(prompt, &confirm); err != nil {
					return err
				}
				if !confirm {
					return nil
				}
			}

			a, err := newAgent()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}
			queue, err := a.Store(ctx)
			if err != nil {
				return err
			}
			logger, err := a.Logger(ctx, "queue")
			if err != nil {
				return err
			}

			report := registry.NewWriter(queue, logger).Purge(ctx, recordID, key)
			if err := report.Err(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d descriptor(s)\n", report.Purged)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
