package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLabelsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Manage the label registry",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered labels",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := storeFor(opts.cfg)
				if err != nil {
					return err
				}
				defer st.Close()

				names, err := st.Labels().Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add NAME...",
			Short: "Register one or more labels",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := storeFor(opts.cfg)
				if err != nil {
					return err
				}
				defer st.Close()

				for _, name := range args {
					label, err := st.Labels().Create(name)
					if err != nil {
						return fmt.Errorf("failed to add %q: %w", name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", label.Name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename OLD NEW",
			Short: "Rename a label, keeping its samples and history",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := storeFor(opts.cfg)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.Labels().Rename(args[0], args[1]); err != nil {
					return fmt.Errorf("failed to rename %q: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:     "remove NAME",
			Aliases: []string{"rm"},
			Short:   "Remove a label with its samples and template",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := storeFor(opts.cfg)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.Labels().Delete(args[0]); err != nil {
					return fmt.Errorf("failed to remove %q: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
