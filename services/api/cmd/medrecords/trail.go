package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"medrecords/pkg/render"
	"medrecords/services/audit"
)

func newTrailCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "trail <table> <record-id>",
		Short: "Print the audit history of a record, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			viewer, err := audit.NewViewer(a.orm)
			if err != nil {
				return err
			}
			entries, err := viewer.Trail(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return writeTrail(cmd.OutOrStdout(), format, args[0], args[1], entries)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

type trailDocument struct {
	Table    string             `json:"table" yaml:"table"`
	RecordID string             `json:"record_id" yaml:"record_id"`
	Entries  []audit.TrailEntry `json:"entries" yaml:"entries"`
}

func writeTrail(w io.Writer, format, table, recordID string, entries []audit.TrailEntry) error {
	doc := trailDocument{Table: table, RecordID: recordID, Entries: entries}

	switch strings.ToLower(format) {
	case "text", "":
		engine, err := render.New()
		if err != nil {
			return err
		}
		out, err := engine.Render(render.Trail, doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
