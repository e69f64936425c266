package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chararch/zonalbatch"
	"github.com/chararch/zonalbatch/file"
	"github.com/chararch/zonalbatch/internal/config"
	"github.com/chararch/zonalbatch/internal/logs"
	"github.com/chararch/zonalbatch/status"
	"github.com/chararch/zonalbatch/vector"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "zonalbatch",
		Short:         "Compute zonal statistics of a raster over polygon layers in parallel batches",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml configuration file")
	root.AddCommand(newRunCmd(&configPath), newHistoryCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

//setup apply the ambient settings of cfg: logger, scheduler size and run history
func setup(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	level, ok := logs.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, errors.Errorf("unknown log level:%v", cfg.LogLevel)
	}
	zonalbatch.SetLogger(logs.NewLogger(os.Stdout, level))
	if cfg.MaxRunningTasks > 0 {
		zonalbatch.SetMaxRunningTasks(cfg.MaxRunningTasks)
	}
	if cfg.DB.Driver == "" {
		return nil, nil
	}
	db, err := sql.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v database", cfg.DB.Driver)
	}
	zonalbatch.SetDB(db)
	if err := zonalbatch.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		overrides config.Config
		virtual   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one zonal statistics calculation and wait for it",
		Example: `  zonalbatch run -c zonal.yaml
  zonalbatch run --raster dem.asc --vector zones.geojson --id-field id --aggregates mean,max --jobs 4 --output out.geojson`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("raster") {
				cfg.Raster = overrides.Raster
			}
			if flags.Changed("vector") {
				cfg.Vector = overrides.Vector
			}
			if flags.Changed("id-field") {
				cfg.IDField = overrides.IDField
			}
			if flags.Changed("aggregates") {
				cfg.Aggregates = overrides.Aggregates
			}
			if flags.Changed("arrays") {
				cfg.Arrays = overrides.Arrays
			}
			if flags.Changed("jobs") {
				cfg.ParallelJobs = overrides.ParallelJobs
			}
			if flags.Changed("output") {
				cfg.Output = overrides.Output
			}
			if flags.Changed("prefix") {
				cfg.Prefix = overrides.Prefix
			}
			if flags.Changed("virtual") {
				cfg.Virtual = virtual
			}
			return runCalculation(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&overrides.Raster, "raster", "", "raster location, an ESRI ASCII grid file")
	cmd.Flags().StringVar(&overrides.Vector, "vector", "", "polygon layer file, geojson, csv or tsv")
	cmd.Flags().StringVar(&overrides.IDField, "id-field", "", "identifier field of the polygon layer")
	cmd.Flags().StringSliceVar(&overrides.Aggregates, "aggregates", nil, "aggregate statistics")
	cmd.Flags().StringSliceVar(&overrides.Arrays, "arrays", nil, "array statistics")
	cmd.Flags().IntVarP(&overrides.ParallelJobs, "jobs", "j", 1, "number of parallel jobs")
	cmd.Flags().StringVarP(&overrides.Output, "output", "o", "", "output file path pattern")
	cmd.Flags().StringVar(&overrides.Prefix, "prefix", "", "prefix of the statistics columns")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "keep the result in memory instead of writing a file")
	return cmd
}

//waitListener signals the end of a run
type waitListener struct {
	done chan *zonalbatch.RunExecution
}

func (l *waitListener) BeforeRun(execution *zonalbatch.RunExecution) zonalbatch.BatchError {
	return nil
}

func (l *waitListener) AfterRun(execution *zonalbatch.RunExecution) zonalbatch.BatchError {
	l.done <- execution
	return nil
}

func runCalculation(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var layer *vector.Layer
	if cfg.Vector != "" {
		if layer, err = readLayer(cfg.Vector); err != nil {
			return err
		}
	}

	listener := &waitListener{done: make(chan *zonalbatch.RunExecution, 1)}
	store := &file.LocalFileSystem{}
	builder := zonalbatch.NewOrchestrator().
		Console(zonalbatch.NewWriterConsole(os.Stderr)).
		Persister(&zonalbatch.FilePersister{Store: store, Format: cfg.Format, Checksum: cfg.Checksum}).
		Listener(listener)
	if publisher := newPublisher(cfg); publisher != nil {
		builder.Publisher(publisher)
	}
	o := builder.Build()

	values := zonalbatch.FormValues{
		Raster:       cfg.Raster,
		Vector:       layer,
		IDField:      cfg.IDField,
		Aggregates:   cfg.Aggregates,
		Arrays:       cfg.Arrays,
		ParallelJobs: cfg.ParallelJobs,
		OutputPath:   cfg.Output,
		Virtual:      cfg.Virtual,
		Prefix:       cfg.Prefix,
	}
	if err := o.Calculate(ctx, values); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	var execution *zonalbatch.RunExecution
	for execution == nil {
		select {
		case execution = <-listener.done:
		case <-signals:
			o.Cancel()
		}
	}
	fmt.Printf("run %v %v: %d features, %d combined rows, %d output rows\n", execution.RunID, execution.Status,
		execution.FeatureCount, execution.CombinedRows, execution.OutputRows)
	if execution.OutputPath != "" && execution.Status == status.COMPLETED {
		fmt.Printf("output: %v\n", execution.OutputPath)
	}
	if execution.Status != status.COMPLETED {
		return errors.Errorf("run %v ended %v", execution.RunID, execution.Status)
	}
	return nil
}

func readLayer(path string) (*vector.Layer, error) {
	tp := file.TypeOf(path)
	reader := file.GetLayerReader(tp)
	if reader == nil {
		return nil, errors.Errorf("unsupported vector file:%v", path)
	}
	return reader.Read(file.FileDescriptor{FileStore: &file.LocalFileSystem{}, FileName: path, Type: tp})
}

func newPublisher(cfg *config.Config) *zonalbatch.Publisher {
	ftpCfg := cfg.Publish.FTP
	if ftpCfg == nil {
		return nil
	}
	return &zonalbatch.Publisher{
		Target: &file.FTPFileSystem{
			Host:        ftpCfg.Host,
			Port:        ftpCfg.Port,
			User:        ftpCfg.User,
			Password:    ftpCfg.Password,
			ConnTimeout: ftpCfg.Timeout,
		},
		Dir:      cfg.Publish.Path,
		Checksum: file.OKFlag,
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded calculation runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.DB.Driver == "" {
				return errors.New("no run history database configured")
			}
			db, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var runs []*zonalbatch.RunExecution
			if runID != "" {
				run, e := zonalbatch.FindRunExecution(ctx, runID)
				if e != nil {
					return e
				}
				if run == nil {
					return errors.Errorf("run %v not found", runID)
				}
				runs = append(runs, run)
			} else {
				var e zonalbatch.BatchError
				if runs, e = zonalbatch.FindRunExecutions(ctx, limit); e != nil {
					return e
				}
			}
			for _, run := range runs {
				fmt.Printf("%v\t%v\t%v\t%v\t%d/%d rows\t%v\n", run.RunID, run.CreateTime.Format("2006-01-02 15:04:05"),
					run.LayerName, run.Status, run.OutputRows, run.FeatureCount, run.OutputPath)
				if runID == "" {
					continue
				}
				for _, b := range run.Batches {
					line := fmt.Sprintf("  %v\t[%d, %d)\t%v\t%d rows", b.Name, b.Start, b.Start+b.Size, b.Status, b.RowCount)
					if b.FailError != nil {
						line += "\t" + b.FailError.Error()
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show one run with its batches")
	return cmd
}
