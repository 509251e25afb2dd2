package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backdrop/internal/deps"
	"backdrop/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories, storage and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			binaries := preflight.CheckSystemDeps(cfg)
			failed := len(preflight.Failed(checks))
			for _, status := range deps.Missing(binaries) {
				if !status.Optional {
					failed++
				}
			}

			if ctx.JSONMode() {
				type checkJSON struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail"`
				}
				payload := make([]checkJSON, 0, len(checks)+len(binaries))
				for _, b := range binaries {
					detail := b.Path
					if !b.Available {
						detail = b.Detail
					}
					payload = append(payload, checkJSON{Name: b.Name, Passed: b.Available, Detail: detail})
				}
				for _, c := range checks {
					payload = append(payload, checkJSON(c))
				}
				if err := writeJSON(cmd, map[string]any{"checks": payload, "failed": failed}); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(checks)+len(binaries))
				for _, b := range binaries {
					detail := b.Path
					if !b.Available {
						detail = b.Detail
					}
					rows = append(rows, []string{b.Name, passLabel(b.Available, b.Optional), detail})
				}
				for _, c := range checks {
					rows = append(rows, []string{c.Name, passLabel(c.Passed, false), c.Detail})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{left("Check"), left("Status"), left("Detail")},
					rows,
				))
			}

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}

func passLabel(passed, optional bool) string {
	switch {
	case passed:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAIL"
	}
}
