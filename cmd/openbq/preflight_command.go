package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"openbq/internal/config"
	"openbq/internal/preflight"
	"openbq/internal/workunit"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "preflight [input-folder]",
		Short: "Check directories and engine binaries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := config.NewJobOptions(cfg)
			opts.Engine = workunit.Engine(engine)
			if len(args) == 1 {
				opts.InputDir = args[0]
				if err := opts.Normalize(time.Now()); err != nil {
					return err
				}
			}

			printer := newStatusPrinter(cmd.OutOrStdout())
			printer.section("Preflight")
			for _, result := range preflight.RunAll(cmd.Context(), cfg, opts) {
				printer.result(result)
			}
			if printer.failed > 0 {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&engine, "engine", "e", string(workunit.EngineOBQE), "Engine whose binary is checked")
	return cmd
}
