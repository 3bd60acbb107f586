package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/3-lines-studio/asgard"
	"github.com/spf13/cobra"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		data     string
		dataFile string
	)

	cmd := &cobra.Command{
		Use:   "render <view>",
		Short: "Render one view to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := readData(data, dataFile)
			if err != nil {
				return err
			}

			r, err := a.renderer()
			if err != nil {
				return err
			}
			defer func() { _ = r.Stop() }()

			doc, err := r.Render(cmd.Context(), args[0], asgard.NewRenderContext(values))
			if err != nil {
				return err
			}

			output(cmd).Raw(doc)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "view data as a JSON object")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "file holding the view data as a JSON object")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

func readData(data, file string) (map[string]any, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		data = string(b)
	}
	if data == "" {
		return nil, nil
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("view data must be a JSON object: %w", err)
	}
	return values, nil
}
