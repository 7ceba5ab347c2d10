package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thisisjab/logtable/config"
	"github.com/thisisjab/logtable/engine"
	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/filter"
	"github.com/thisisjab/logtable/keys"
	"github.com/thisisjab/logtable/processor"
	"github.com/thisisjab/logtable/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "logtable",
		Short:         "logtable CLI",
		Long:          "Tools to check a table target, send log lines into it and inspect its keys.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().String("table", "", "table name, overrides target.table_name")
	rootCmd.PersistentFlags().String("connection", "", "connection string or setting name, overrides target.connection_string")

	rootCmd.AddCommand(newCheckCommand(), newSendCommand(), newKeysCommand(), newFilterCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config, then the environment, then
// the remaining persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	config.FromEnv(&cfg)

	if v, _ := cmd.Flags().GetString("table"); v != "" {
		cfg.Target.TableName = v
	}
	if v, _ := cmd.Flags().GetString("connection"); v != "" {
		cfg.Target.ConnectionString = v
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "stderr"
	}
	return cfg, nil
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Resolve the connection string, validate the table name and create the table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cs, err := cfg.ResolveConnectionString(cfg.Target.ConnectionString)
			if err != nil {
				return err
			}

			components, _, err := cfg.Parse(cmd.Context())
			if err != nil {
				return err
			}
			defer components.Close(context.Background()) //nolint:errcheck

			fmt.Fprintf(cmd.OutOrStdout(), "table %s is ready on %s\n", components.Target.TableName(), cs)
			return nil
		},
	}
}

func newSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Write lines from stdin into the table and wait for them to drain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			loggerName, _ := cmd.Flags().GetString("logger")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// send always reads stdin, whatever sources the file lists.
			cfg.Sources = nil

			components, logger, err := cfg.Parse(cmd.Context())
			if err != nil {
				return err
			}

			processors := map[string]engine.LogProcessor{}
			var names []string
			if format == "json" {
				p, err := processor.NewJsonLogProcessor(processor.JsonLogProcessorConfig{Name: "json"})
				if err != nil {
					return err
				}
				processors["json"] = p
				names = []string{"json"}
			}

			e, err := engine.New(engine.Config{
				Sources:               map[string]engine.LogSource{loggerName: source.NewReaderLogSource(loggerName, cmd.InOrStdin(), names)},
				Processors:            processors,
				Writer:                components.Target,
				RawLogsBufferSize:     100,
				ProcessorWorkersCount: 1,
			}, logger)
			if err != nil {
				return err
			}

			runErr := e.Run(cmd.Context())
			closeErr := components.Close(context.Background())

			s := components.Target.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "written %d, filtered %d, dropped %d entities in %d batches\n",
				s.Written, s.Filtered, s.DroppedEntities, s.DroppedBatches)

			if runErr != nil && runErr != context.Canceled {
				return runErr
			}
			return closeErr
		},
	}
	sendCmd.Flags().String("format", "text", "line format: text or json")
	sendCmd.Flags().String("logger", "stdin", "logger name for lines that carry none")
	return sendCmd
}

func newKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Print the partition and row key a record would get",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loggerName, _ := cmd.Flags().GetString("logger")
			prefix, _ := cmd.Flags().GetString("prefix")
			at, _ := cmd.Flags().GetString("at")

			ts := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339Nano, at)
				if err != nil {
					return fmt.Errorf("invalid --at; expected RFC3339: %w", err)
				}
				ts = t
			}

			rec := entity.LogRecord{LoggerName: loggerName, Timestamp: ts}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "partition_key: %s\n", keys.LoggerName{Prefix: prefix}.Key(rec))
			fmt.Fprintf(out, "row_key:       %s\n", keys.ReverseTimeUnique{}.Key(rec))
			fmt.Fprintf(out, "ticks:         %d\n", keys.Ticks(ts))
			return nil
		},
	}
	keysCmd.Flags().String("logger", "", "logger name")
	keysCmd.Flags().String("prefix", "", "partition key prefix")
	keysCmd.Flags().String("at", "", "record time, RFC3339 (default now)")
	return keysCmd
}

func newFilterCommand() *cobra.Command {
	filterCmd := &cobra.Command{
		Use:   "filter <expression>",
		Short: "Print the JSON lines from stdin that an expression matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useCEL, _ := cmd.Flags().GetBool("cel")

			var cond engine.Condition
			var err error
			if useCEL {
				cond, err = filter.CompileCEL(args[0])
			} else {
				cond, err = filter.Compile(args[0])
			}
			if err != nil {
				return err
			}

			p, err := processor.NewJsonLogProcessor(processor.JsonLogProcessorConfig{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				rec, err := p.Process(entity.RawLogRecord{Source: "stdin", Data: sc.Bytes(), Timestamp: time.Now()})
				if err != nil {
					continue
				}
				if cond.Match(rec) {
					fmt.Fprintln(out, sc.Text())
				}
			}
			return sc.Err()
		},
	}
	filterCmd.Flags().Bool("cel", false, "treat the expression as CEL")
	return filterCmd
}
