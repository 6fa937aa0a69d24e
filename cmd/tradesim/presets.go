package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage saved strategy presets",
}

var presetSaveFlags struct {
	strategy string
	params   []string
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save or replace a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := strategy.ParseKind(presetSaveFlags.strategy)
		if err != nil {
			return err
		}
		params, err := parseParams(presetSaveFlags.params)
		if err != nil {
			return err
		}
		// Validate now so a bad preset fails at save time, not at run time.
		if _, err := builtins.New(kind, params); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		p := store.Preset{Name: args[0], Strategy: string(kind), Params: params}
		if err := a.DB.SavePreset(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved preset %s (%s)\n", p.Name, kind)
		return nil
	},
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		presets, err := a.DB.ListPresets(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTRATEGY\tPARAMS\tUPDATED")
		for _, p := range presets {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Strategy, formatParams(p.Params), p.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DB.DeletePreset(ctx, args[0]); err != nil {
			return fmt.Errorf("deleting preset %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted preset %s\n", args[0])
		return nil
	},
}

func formatParams(params map[string]float64) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, params[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	presetsSaveCmd.Flags().StringVarP(&presetSaveFlags.strategy, "strategy", "s", "", "Strategy kind (required)")
	presetsSaveCmd.Flags().StringArrayVarP(&presetSaveFlags.params, "param", "p", nil, "Strategy parameter as name=value (repeatable)")
	_ = presetsSaveCmd.MarkFlagRequired("strategy")

	presetsCmd.AddCommand(presetsSaveCmd, presetsListCmd, presetsDeleteCmd)
	rootCmd.AddCommand(presetsCmd)
}
