package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/purelang/launcher/internal/config"
	"github.com/purelang/launcher/pipeline"
	"github.com/purelang/launcher/service"
)

type runFlags struct {
	core       string
	cfgPath    string
	cfgType    config.Type
	assembly   string
	class      string
	assemblies []string
	prebuiltAM bool
}

func (a *app) runCommand() *cobra.Command {
	f := runFlags{cfgType: config.TypeJSON}
	cmd := &cobra.Command{
		Use:   "run --assembly <name> --class <name> [flags] [-- <program args>...]",
		Short: "Run an entry point with the runtime module",
		Args: func(cmd *cobra.Command, args []string) error {
			if dash := cmd.ArgsLenAtDash(); dash > 0 || (dash < 0 && len(args) > 0) {
				return fmt.Errorf("unexpected arguments before --: %q", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cfg service.Config
			if f.cfgPath != "" {
				var err error
				if cfg, err = config.LoadServiceConfig(f.cfgPath, f.cfgType); err != nil {
					return err
				}
			}

			job := pipeline.RunJob{
				Core:       f.core,
				Config:     cfg,
				Assemblies: f.assemblies,
				Assembly:   f.assembly,
				Class:      f.class,
				Args:       args,
			}
			if f.prebuiltAM {
				am, err := pipeline.NewAssemblyManager(ctx, a.loader, f.core)
				if err != nil {
					return err
				}
				defer func() {
					if err := am.Close(); err != nil {
						a.logger.Warn("Failed to release assembly manager", zap.Error(err))
					}
				}()
				job.AssemblyManager = am
			}

			status, err := pipeline.Run(ctx, a.loader, job, a.logger)
			if err != nil {
				return err
			}
			a.status = status
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.core, "core", a.settings.DefaultCore(config.RuntimeModule), "path of the runtime module")
	flags.StringVar(&f.cfgPath, "cfg-path", "", "path of a configuration passed to the VM")
	flags.Var(&f.cfgType, "cfg-type", "configuration format (JSON)")
	flags.StringVar(&f.assembly, "assembly", "", "entry assembly name")
	flags.StringVar(&f.class, "class", "", "entry class name")
	flags.StringArrayVar(&f.assemblies, "assemblies", nil, "assembly file to load, in order (repeatable)")
	flags.BoolVar(&f.prebuiltAM, "prebuilt-assembly-manager", false,
		"build the assembly manager separately and hand it to the VM")
	_ = cmd.MarkFlagRequired("assembly")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}
