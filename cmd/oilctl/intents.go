package oilctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/oilengine/internal/config"
	"github.com/nextlevelbuilder/oilengine/internal/registry"
)

func intentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intents",
		Short: "Inspect the intent/pack registry without running anything",
	}
	cmd.AddCommand(intentsValidateCmd())
	cmd.AddCommand(intentsListCmd())
	return cmd
}

func intentsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pack.yaml>",
		Short: "Validate an intent pack file without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			specs, err := registry.DecodePackFile(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			// A scratch registry in force mode exercises the same
			// validate-then-compile path LoadFile uses, without the
			// PackConflict check a real load would apply.
			scratch := registry.New(nil)
			defs, err := scratch.LoadPack(args[0], specs, true)
			if err != nil {
				return fmt.Errorf("invalid: %w", err)
			}
			for _, def := range defs {
				fmt.Printf("ok: %s (%d step%s)\n", def.Name, len(def.Steps), plural(len(def.Steps)))
			}
			return nil
		},
	}
}

func intentsListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "List every intent visible to a session (built-in + configured pack dirs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg := registry.New(registry.Builtins())
			dirs := packDirs
			if len(dirs) == 0 {
				dirs = cfg.Packs.Dirs
			}
			for _, dir := range dirs {
				if err := reg.LoadDir(config.ExpandHome(dir), cfg.Packs.ForceOnReload); err != nil {
					return fmt.Errorf("load pack dir %s: %w", dir, err)
				}
			}
			for _, def := range reg.All() {
				desc := def.Description
				if desc == "" {
					desc = "(no description)"
				}
				fmt.Printf("%-20s %s\n", def.Name, desc)
			}
			return nil
		},
	}
	c.Flags().StringSliceVar(&packDirs, "pack-dir", nil, "intent pack directories to load (overrides config)")
	return c
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
