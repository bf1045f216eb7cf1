// Package cmd implements the s3connector command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ThierryZhou/go-s3connector/fs/config"
	"github.com/ThierryZhou/go-s3connector/metrics"
	"github.com/ThierryZhou/go-s3connector/s3"
)

// exitError carries a process exit status without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	endpoint    string
	region      string
	accessKey   string
	secretKey   string
	logLevel    string
	progress    bool
	metricsFile string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	fs.StringVar(&g.endpoint, "endpoint", "", "S3 endpoint URL, empty for AWS")
	fs.StringVar(&g.region, "region", "", "region (default "+s3.DefaultRegion+")")
	fs.StringVar(&g.accessKey, "access-key", "", "access key ID")
	fs.StringVar(&g.secretKey, "secret-key", "", "secret access key")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&g.progress, "progress", false, "show transfer progress on stderr")
	fs.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}

// app is the state shared by the commands of one invocation.
type app struct {
	flags   globalFlags
	cfg     *config.Config
	metrics *metrics.StorageMetrics

	// newClient is replaced in tests.
	newClient func(o *s3.Option, fns ...s3.OptionFunc) (s3.Client, error)
}

// NewRootCmd builds the s3connector command tree.
func NewRootCmd() *cobra.Command {
	a := &app{newClient: s3.NewClient}

	root := &cobra.Command{
		Use:           "s3connector",
		Short:         "Manage buckets and objects on S3 compatible storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	a.flags.register(root.PersistentFlags())

	root.AddCommand(
		newMakeBucketCmd(a),
		newRemoveBucketCmd(a),
		newExistsCmd(a),
		newListCmd(a),
		newPutCmd(a),
		newPutCSVCmd(a),
		newGetCmd(a),
		newCatCmd(a),
		newStatCmd(a),
		newRemoveCmd(a),
		newPresignCmd(a),
		newConfigureCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func (a *app) setup(cmd *cobra.Command) error {
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: logTimeFormat,
	})

	path, err := config.Path(a.flags.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = a.flags.endpoint
	}
	if flags.Changed("region") {
		cfg.Region = a.flags.region
	}
	if flags.Changed("access-key") {
		cfg.AccessKey = a.flags.accessKey
	}
	if flags.Changed("secret-key") {
		cfg.SecretKey = a.flags.secretKey
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := log.InfoLevel
	if cfg.LogLevel != "" {
		level, _ = log.ParseLevel(cfg.LogLevel)
	}
	log.SetLevel(level)
	log.Debugf("using config %s:\n%s", path, cfg)

	a.cfg = cfg
	a.metrics = metrics.New()
	return nil
}

func (a *app) teardown() error {
	if a.flags.metricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.flags.metricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	log.Debugf("metrics written to %s", a.flags.metricsFile)
	return nil
}

// client builds the S3 client for one command.
func (a *app) client(cmd *cobra.Command, fns ...s3.OptionFunc) (s3.Client, error) {
	fns = append([]s3.OptionFunc{s3.WithObserver(a.metrics)}, fns...)
	if a.flags.progress {
		fns = append(fns, s3.WithProgress(newProgress(cmd.ErrOrStderr())))
	}
	return a.newClient(a.cfg.Option(), fns...)
}

// timestamp renders t the way listings show it.
func timestamp(t time.Time) string {
	if t.IsZero() {
		return "                   "
	}
	return t.Local().Format(logTimeFormat)
}

// Main is the entry point used by cmd/s3connector.
func Main() {
	os.Exit(Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
