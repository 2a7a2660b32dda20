package main

import (
	"context"
	"fmt"

	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/aretw0/wayfarer/internal/config"
	"github.com/aretw0/wayfarer/pkg/registry"
	"github.com/aretw0/wayfarer/pkg/responder"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the capability catalogue for consistency",
	Long:  `Loads the catalogue, checks every descriptor and binds each one to a responder variant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		regCfg := cfg.Registry
		if p, _ := cmd.Flags().GetString("registry"); p != "" {
			regCfg = config.RegistryConfig{Path: p}
		}
		if d, _ := cmd.Flags().GetString("registry-dir"); d != "" {
			regCfg = config.RegistryConfig{Dir: d}
		}

		src, err := cli.NewSource(regCfg)
		if err != nil {
			return err
		}
		reg, err := registry.Load(context.Background(), src)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if _, err := responder.Build(reg.All()); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		fmt.Printf("%s: %d responders, default %q\n", reg.Source(), reg.Len(), reg.Default().ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("registry", "", "Catalogue file to validate (YAML or JSON)")
	validateCmd.Flags().String("registry-dir", "", "Loam directory to validate")
}
