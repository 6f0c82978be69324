package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/store"
)

func newTemplatesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Train and inspect label templates",
	}
	cmd.AddCommand(newTemplatesTrainCmd(opts), newTemplatesListCmd(opts))
	return cmd
}

func newTemplatesTrainCmd(opts *options) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "train --label NAME SEQUENCE.json...",
		Short: "Record sequences for a label and rebuild its template",
		Long: `Each file holds one recorded window as {"label": "A", "frames": [[...], ...]}.
The sequences are stored as samples and the label's template is rebuilt from
every sample recorded so far.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if label == "" {
				return errors.New("--label is required")
			}

			samples := make([]json.RawMessage, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read sequence: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("%s is not valid JSON", path)
				}
				samples = append(samples, data)
			}

			st, err := storeFor(opts.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			tpl, total, err := trainLabel(st, label, samples, opts.cfg.Session.WindowSize, opts.cfg.Session.Points)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained %s from %d samples (%d dims)\n", tpl.Label, total, len(tpl.Centroid))
			return nil
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "label the sequences belong to")
	return cmd
}

// trainLabel validates and stores samples, then saves a template averaged
// over every sample of label.
func trainLabel(st *store.Store, label string, samples []json.RawMessage, frames, points int) (*classifier.Template, int, error) {
	trainer := classifier.NewTrainer(frames, feature.NewVectorizer(points).Dim())

	// Reject bad input before anything is written.
	if _, err := trainer.Train(label, samples); err != nil {
		return nil, 0, err
	}

	if _, err := st.Labels().Create(label); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, 0, err
	}
	if err := st.Samples().Append(label, samples); err != nil {
		return nil, 0, fmt.Errorf("failed to store samples: %w", err)
	}

	all, err := st.Samples().Data(label)
	if err != nil {
		return nil, 0, err
	}
	tpl, err := trainer.Train(label, all)
	if err != nil {
		return nil, 0, err
	}

	err = st.Templates().Save(&store.Template{
		Label:    tpl.Label,
		Centroid: []float32(tpl.Centroid),
		Samples:  len(all),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save template: %w", err)
	}
	return tpl, len(all), nil
}

func newTemplatesListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trained templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFor(opts.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			templates, err := st.Templates().List()
			if err != nil {
				return err
			}
			for _, t := range templates {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d samples\n", t.Label, t.Samples)
			}
			return nil
		},
	}
}
