// Package cli is the iidc maintenance tool: it generates and checks hardware configuration
// files, checks and edits camera state files, benchmarks the parameter engine against a
// simulated camera and re-applies a state file whenever it changes.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/iidc/logging"
)

const (
	generalFlagDebug    = "debug"
	generalFlagLogLevel = "log-level"
	generalFlagLogFile  = "log-file"

	configFlagFormat0 = "format0"
	configFlagOut     = "out"

	stateFlagOut = "out"

	benchFlagFrames    = "frames"
	benchFlagRate      = "rate"
	benchFlagWidth     = "width"
	benchFlagHeight    = "height"
	benchFlagBuffers   = "buffers"
	benchFlagStall     = "stall-every"
	benchFlagConfigDir = "config-dir"
	benchFlagFormat0   = "format0"

	watchFlagConfigDir = "config-dir"

	metadataLogger   = "logger"
	metadataAppender = "appender"
)

var app = &cli.App{
	Name:            "iidc",
	Usage:           "maintain IIDC camera configuration and state files",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogLevel,
			Value: "info",
			Usage: "log `LEVEL`: debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also log to `FILE`, rotated at 10MB",
		},
	},
	Before: setupLogging,
	After:  closeLogging,

	// errors are returned to main, which reports them and picks the exit code
	ExitErrHandler: func(*cli.Context, error) {},
	Commands: []*cli.Command{
		{
			Name:            "config",
			Usage:           "work with hardware configuration files",
			HideHelpCommand: true,
			Subcommands: []*cli.Command{
				{
					Name:  "generate",
					Usage: "print a best guess configuration for a simulated camera",
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:  configFlagFormat0,
							Usage: "simulate a camera with only the fixed VGA format",
						},
						&cli.StringFlag{
							Name:  configFlagOut,
							Usage: "write the configuration into `DIR` under its chip name",
						},
					},
					Action: ConfigGenerateAction,
				},
				{
					Name:      "check",
					Usage:     "read and validate configuration files",
					ArgsUsage: "<file> [file...]",
					Action:    ConfigCheckAction,
				},
			},
		},
		{
			Name:            "state",
			Usage:           "work with camera state files",
			HideHelpCommand: true,
			Subcommands: []*cli.Command{
				{
					Name:      "check",
					Usage:     "read a state file and print the frame sizes it implies",
					ArgsUsage: "<file>",
					Action:    StateCheckAction,
				},
				{
					Name:      "set",
					Usage:     "change fields of a state file",
					ArgsUsage: "<file> <field=value> [field=value...]",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  stateFlagOut,
							Usage: "write the result to `FILE` instead of back to the input",
						},
					},
					Action: StateSetAction,
				},
			},
		},
		{
			Name:  "bench",
			Usage: "acquire frames from a simulated camera and report frame interval statistics",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  benchFlagFrames,
					Value: 100,
					Usage: "number of frames to acquire",
				},
				&cli.Float64Flag{
					Name:  benchFlagRate,
					Value: 30,
					Usage: "requested frame rate",
				},
				&cli.IntFlag{
					Name:  benchFlagWidth,
					Usage: "frame width, 0 for the camera default",
				},
				&cli.IntFlag{
					Name:  benchFlagHeight,
					Usage: "frame height, 0 for the camera default",
				},
				&cli.IntFlag{
					Name:  benchFlagBuffers,
					Value: 10,
					Usage: "number of frame buffers",
				},
				&cli.IntFlag{
					Name:  benchFlagStall,
					Usage: "every `N` frames let the buffer ring fill up, 0 never",
				},
				&cli.StringFlag{
					Name:  benchFlagConfigDir,
					Value: ".",
					Usage: "look for the hardware configuration in `DIR` first",
				},
				&cli.BoolFlag{
					Name:  benchFlagFormat0,
					Usage: "simulate a camera with only the fixed VGA format",
				},
			},
			Action: BenchAction,
		},
		{
			Name:      "watch",
			Usage:     "apply a state file to a simulated camera every time it changes",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  watchFlagConfigDir,
					Value: ".",
					Usage: "look for the hardware configuration in `DIR` first",
				},
			},
			Action: WatchAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func setupLogging(c *cli.Context) error {
	level, err := logging.LevelFromString(c.String(generalFlagLogLevel))
	if err != nil {
		return err
	}
	if c.Bool(generalFlagDebug) {
		level = logging.DEBUG
	}
	logger := logging.NewBlankLogger("iidc")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	delete(c.App.Metadata, metadataAppender)
	if path := c.String(generalFlagLogFile); path != "" {
		appender := logging.NewFileAppender(path, 10, 3)
		logger.AddAppender(appender)
		setMetadata(c, metadataAppender, appender)
	}
	setMetadata(c, metadataLogger, logger)
	logging.ReplaceGlobal(logger)
	return nil
}

func closeLogging(c *cli.Context) error {
	logger := loggerFrom(c)
	err := logger.Sync()
	if appender, ok := c.App.Metadata[metadataAppender].(*logging.FileAppender); ok {
		err = multierr.Combine(err, appender.Close())
	}
	return err
}

func setMetadata(c *cli.Context, key string, value interface{}) {
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[key] = value
}

// loggerFrom returns the logger set up for this run.
func loggerFrom(c *cli.Context) logging.Logger {
	if logger, ok := c.App.Metadata[metadataLogger].(logging.Logger); ok {
		return logger
	}
	return logging.Global()
}

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a message prefixed with a bold cyan "Info: ".
func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;36mInfo:\x1b[0m "+format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;33mWarning:\x1b[0m "+format+"\n", a...)
}
