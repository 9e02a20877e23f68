package cli

import (
	"github.com/spf13/cobra"

	"github.com/purelang/launcher/internal/config"
	"github.com/purelang/launcher/pipeline"
	"github.com/purelang/launcher/service"
)

type compileFlags struct {
	core      string
	cfgPath   string
	compilers []string
	sources   []string
}

func (a *app) compileCommand() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile source files with the compile service module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg service.Config
			if f.cfgPath != "" {
				var err error
				if cfg, err = config.LoadServiceConfig(f.cfgPath, config.TypeJSON); err != nil {
					return err
				}
			}
			return pipeline.Compile(cmd.Context(), a.loader, pipeline.CompileJob{
				Core:      f.core,
				Config:    cfg,
				Compilers: f.compilers,
				Sources:   f.sources,
				Namer:     pipeline.LoggingNamer(a.logger),
			}, a.logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.core, "core", a.settings.DefaultCore(config.CompileServiceModule), "path of the compile service module")
	flags.StringVar(&f.cfgPath, "cfg-path", "", "path of a JSON configuration passed to the compile service")
	flags.StringArrayVar(&f.compilers, "compilers", nil, "compiler plugin to load, in order (repeatable)")
	flags.StringArrayVarP(&f.sources, "sources", "s", nil, "source file to compile, in order (repeatable)")
	return cmd
}
