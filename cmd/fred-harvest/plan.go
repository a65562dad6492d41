package main

import (
	"encoding/json"

	"github.com/Sternrassler/fred-series-harvester/pkg/harvest"
	"github.com/spf13/cobra"
)

// planOutput is what the plan command prints.
type planOutput struct {
	Quota      int           `json:"quota"`
	Clamped    bool          `json:"clamped,omitempty"`
	FetchCount int           `json:"fetchCount"`
	Requests   []planRequest `json:"requests"`
}

type planRequest struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Query  string `json:"query"`
}

// newPlanCmd creates the plan subcommand.
func newPlanCmd() *cobra.Command {
	qf := &queryFlags{}
	var paying bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the search requests a run would issue, without calling FRED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.build(cmd)
			if err != nil {
				return err
			}

			prepared, err := harvest.Prepare(q, harvest.Entitlement{IsPaying: paying})
			if err != nil {
				return err
			}

			out := planOutput{
				Quota:      prepared.Quota.Limit,
				Clamped:    prepared.Quota.Clamped,
				FetchCount: prepared.FetchCount,
				Requests:   make([]planRequest, 0, len(prepared.Requests)),
			}
			for _, r := range prepared.Requests {
				out.Requests = append(out.Requests, planRequest{
					Offset: r.Offset,
					Limit:  r.Limit,
					Query:  r.Values().Encode(),
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	qf.register(cmd)
	cmd.Flags().BoolVar(&paying, "paying", false, "Apply the paid quota tier")

	return cmd
}
