package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisrobison/ouija/internal/spirit"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge spirit records that no longer parse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			purged, err := st.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ Swept store, purged %d record(s)", purged)))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the spirits in the store, marking the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out, err := listSpirits(cmd.Context(), st)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

type spiritLister interface {
	ListValid(ctx context.Context) ([]*spirit.Record, error)
	CurrentID(ctx context.Context) (string, bool, error)
}

func listSpirits(ctx context.Context, st spiritLister) (string, error) {
	records, err := st.ListValid(ctx)
	if err != nil {
		return "", err
	}
	current, _, err := st.CurrentID(ctx)
	if err != nil {
		return "", err
	}
	return spirit.FormatList(records, current), nil
}
