package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/MrWong99/cueline/internal/config"
)

const defaultConfigPath = "config.yaml"

type commandContext struct {
	configFlag *string

	// lookupEnv is os.LookupEnv outside tests.
	lookupEnv func(string) (string, bool)

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		lookupEnv:  os.LookupEnv,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return defaultConfigPath
	}
	return strings.TrimSpace(*c.configFlag)
}

// explicitConfig reports whether the user named a config file. A missing
// default file is fine; a missing named one is an error.
func (c *commandContext) explicitConfig() bool {
	return c.configFlag != nil && strings.TrimSpace(*c.configFlag) != ""
}

func (c *commandContext) loadOptions() []config.LoadOption {
	opts := []config.LoadOption{config.WithEnv(c.lookupEnv)}
	if !c.explicitConfig() {
		opts = append(opts, config.AllowMissing())
	}
	return opts
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(c.configPath(), c.loadOptions()...)
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)
	return buildRootCommand(ctx)
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cueline",
		Short:         "Rehearsal server that follows a script by ear",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(ctx.configFlag, "config", "c", "", "Configuration file path (YAML or .toml; default "+defaultConfigPath+")")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newScriptCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))

	return rootCmd
}
