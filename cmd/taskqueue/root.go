package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Swind/go-taskqueue/core"
)

const envPrefix = "TASKQUEUE"

// newViper binds flags so every flag can also come from TASKQUEUE_<FLAG>,
// with dashes turned into underscores.
func newViper(flags *flag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskqueue",
		Short:         "Run and exercise named serial task queues",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-console", true, "human readable console logs instead of JSON")

	root.AddCommand(newStressCmd(), newServeCmd())
	return root
}

// buildLogger reads the persistent log flags through v.
func buildLogger(v *viper.Viper) (*core.ZerologLogger, error) {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	if v.GetBool("log-console") {
		return core.NewWriterLogger(zerolog.ConsoleWriter{Out: os.Stderr}, level), nil
	}
	return core.NewWriterLogger(os.Stderr, level), nil
}
