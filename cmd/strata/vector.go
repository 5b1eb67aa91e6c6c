// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/internal/vectorindex"
	"github.com/strata-dev/strata/internal/vectorindex/sqlitevec"
	strataerr "github.com/strata-dev/strata/pkg/errors"
)

type neighborRow struct {
	Rank     int     `json:"rank" yaml:"rank"`
	ID       int64   `json:"id" yaml:"id"`
	Distance float64 `json:"distance" yaml:"distance"`
}

func parseVector(args []string) ([]float32, error) {
	vec := make([]float32, len(args))
	for i, raw := range args {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, strataerr.Errorf(strataerr.CodeCLIInputInvalid,
				"vector component %d must be a finite number, got %q", i, raw)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func newVectorAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vector-add <id> <x> [y ...]",
		Short: "Add or replace a vector in the index",
		Long: "Store a vector under id. The first vector fixes the index dimension; " +
			"vectors of any other length are rejected.",
		Example: `  strata vector-add 1 0.1 0.2 0.3
  strata vector-add 2 -- -0.5 0.2 0.9`,
		Args: minimumArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return strataerr.Errorf(strataerr.CodeCLIInputInvalid, "vector id must be an integer, got %q", args[0])
			}
			vec, err := parseVector(args[1:])
			if err != nil {
				return err
			}

			idx, err := a.vectorIndex(cmd)
			if err != nil {
				return err
			}
			if err := idx.Add(cmd.Context(), id, vec); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added vector %d (dimension %d)\n", id, idx.Dimension())
			return err
		}),
	}
}

func newVectorSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vector-search <x> [y ...] <top_k>",
		Short:   "Find the nearest vectors to a query",
		Example: `  strata vector-search 0 0 0 5
  strata vector-search -o json -- -0.5 0.2 0.9 3`,
		Args: minimumArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			last := args[len(args)-1]
			topK, err := strconv.Atoi(last)
			if err != nil {
				return strataerr.Errorf(strataerr.CodeCLIInputInvalid, "top_k must be an integer, got %q", last)
			}
			query, err := parseVector(args[:len(args)-1])
			if err != nil {
				return err
			}

			idx, err := a.vectorIndex(cmd)
			if err != nil {
				return err
			}
			neighbors, err := idx.Search(cmd.Context(), query, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(neighbors) == 0 && format == outputTable {
				_, err := fmt.Fprintln(out, "No vectors.")
				return err
			}
			return render(out, format, neighborTable(neighbors))
		}),
	}

	addOutputFlag(cmd)
	return cmd
}

func neighborTable(neighbors []vectorindex.Neighbor) tabular {
	data := make([]neighborRow, 0, len(neighbors))
	t := tabular{headers: []string{"RANK", "ID", "DISTANCE"}}
	for i, n := range neighbors {
		data = append(data, neighborRow{Rank: i + 1, ID: n.ID, Distance: n.Distance})
		t.rows = append(t.rows, []string{
			strconv.Itoa(i + 1), strconv.FormatInt(n.ID, 10), strconv.FormatFloat(n.Distance, 'f', 6, 64),
		})
	}
	t.data = data
	return t
}

func newVectorResetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vector-reset",
		Short: "Release the vector index handle, optionally emptying or deleting the stored index",
		Args:  exactArgs(0),
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			drop, _ := cmd.Flags().GetBool("drop")
			empty, _ := cmd.Flags().GetBool("clear")

			idx, err := a.vectorIndex(cmd)
			if err != nil && !strataerr.IsVector(err) {
				return err
			}
			if idx != nil && empty && !drop {
				if err := idx.Clear(cmd.Context()); err != nil {
					return err
				}
			}
			if idx != nil {
				if err := idx.Reset(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if drop {
				path := a.cfg.VectorPath()
				if err := sqlitevec.Remove(path); err != nil {
					return err
				}
				_, err := fmt.Fprintf(out, "Vector index dropped (%s)\n", path)
				return err
			}
			if empty {
				_, err = fmt.Fprintln(out, "Vector index cleared")
				return err
			}
			_, err = fmt.Fprintln(out, "Vector index reset")
			return err
		}),
	}

	cmd.Flags().Bool("drop", false, "also delete the persisted index so the next add may pick a new dimension")
	cmd.Flags().Bool("clear", false, "remove every stored vector and the dimension but keep the index file")
	return cmd
}
