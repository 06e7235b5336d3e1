package cli

import (
	"context"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/pixel"
)

type benchOptions struct {
	frames     int
	rate       float64
	width      int
	height     int
	buffers    int
	stallEvery int
	configDir  string
	format0    bool
	migration  io.Writer
}

// benchReport summarizes a bench run. Intervals are between consecutive exposure start
// estimates, in seconds.
type benchReport struct {
	Acquired   int
	Dropped    int64
	Overflows  int
	Rate       float64
	Width      int
	Height     int
	Coding     pixel.Coding
	FrameBytes int
	Buffers    int

	MeanInterval   float64
	StdDevInterval float64
	P99Interval    float64
}

// BenchAction runs the engine against a simulated camera and prints frame statistics.
func BenchAction(c *cli.Context) error {
	opts := benchOptions{
		frames:     c.Int(benchFlagFrames),
		rate:       c.Float64(benchFlagRate),
		width:      c.Int(benchFlagWidth),
		height:     c.Int(benchFlagHeight),
		buffers:    c.Int(benchFlagBuffers),
		stallEvery: c.Int(benchFlagStall),
		configDir:  c.String(benchFlagConfigDir),
		format0:    c.Bool(benchFlagFormat0),
		migration:  c.App.ErrWriter,
	}
	report, err := runBench(c.Context, loggerFrom(c), opts)
	if err != nil {
		return err
	}
	report.print(c.App.Writer)
	return nil
}

func runBench(ctx context.Context, logger logging.Logger, opts benchOptions) (report benchReport, err error) {
	if opts.frames < 1 {
		return benchReport{}, errors.Errorf("need at least one frame, got %d", opts.frames)
	}
	if opts.rate <= 0 {
		return benchReport{}, errors.Errorf("frame rate must be positive, got %v", opts.rate)
	}
	sess, err := openSimSession(ctx, logger, simOptions{
		configDir: opts.configDir,
		format0:   opts.format0,
		migration: opts.migration,
	})
	if err != nil {
		return benchReport{}, err
	}
	defer func() {
		err = multierr.Combine(err, sess.Close(ctx))
	}()
	cam := sess.cam

	if err := cam.SetNumFrameBuffers(ctx, opts.buffers); err != nil {
		return benchReport{}, err
	}
	if opts.width > 0 && opts.height > 0 {
		if err := cam.SetFrameSize(ctx, opts.width, opts.height); err != nil {
			return benchReport{}, err
		}
	}
	if err := cam.SetFrameRate(ctx, opts.rate); err != nil {
		return benchReport{}, err
	}

	if report.Rate, err = cam.FrameRate(ctx); err != nil {
		return benchReport{}, err
	}
	if report.Width, report.Height, err = cam.FrameSize(ctx); err != nil {
		return benchReport{}, err
	}
	if report.Coding, err = cam.PixelCoding(ctx); err != nil {
		return benchReport{}, err
	}
	if report.FrameBytes, err = pixel.FrameBytes(report.Width, report.Height, report.Coding); err != nil {
		return benchReport{}, err
	}
	if report.Buffers, err = cam.NumFrameBuffers(); err != nil {
		return benchReport{}, err
	}
	logger.Debugw("bench configured", "rate", report.Rate, "width", report.Width, "height", report.Height,
		"coding", report.Coding, "buffers", report.Buffers)

	if err := cam.SetRunning(ctx, true); err != nil {
		return benchReport{}, err
	}

	period := time.Duration(float64(time.Second) / report.Rate)
	intervals := make([]float64, 0, opts.frames)
	var last time.Time
	for i := 1; i <= opts.frames; i++ {
		sess.clock.Add(period)
		if opts.stallEvery > 0 && i%opts.stallEvery == 0 {
			sess.sim.Deliver(report.Buffers)
		} else {
			sess.sim.Deliver(1)
		}

		if _, _, err := cam.NextFrame(ctx); err != nil {
			return benchReport{}, err
		}
		stamp, err := cam.Timestamp(ctx)
		if err != nil {
			return benchReport{}, multierr.Combine(err, cam.ReleaseFrame(ctx))
		}
		if err := cam.ReleaseFrame(ctx); err != nil {
			return benchReport{}, err
		}
		report.Acquired++
		if !last.IsZero() {
			intervals = append(intervals, stamp.Sub(last).Seconds())
		}
		last = stamp

		overflow, err := cam.ManageBufferLevel(ctx)
		if err != nil {
			return benchReport{}, err
		}
		if overflow {
			report.Overflows++
		}
	}

	frameNumber, err := cam.FrameNumber()
	if err != nil {
		return benchReport{}, err
	}
	report.Dropped = frameNumber - int64(report.Acquired)

	if len(intervals) > 0 {
		if report.MeanInterval, err = stats.Mean(intervals); err != nil {
			return benchReport{}, err
		}
		if report.StdDevInterval, err = stats.StandardDeviation(intervals); err != nil {
			return benchReport{}, err
		}
		if report.P99Interval, err = stats.Percentile(intervals, 99); err != nil {
			return benchReport{}, err
		}
	}
	return report, nil
}

func (r benchReport) print(w io.Writer) {
	printf(w, "%dx%d %v at %.4g fps", r.Width, r.Height, r.Coding, r.Rate)
	printf(w, "frame %s, ring of %d buffers %s, %s/s",
		units.BytesSize(float64(r.FrameBytes)),
		r.Buffers,
		units.BytesSize(float64(r.FrameBytes*r.Buffers)),
		units.HumanSize(float64(r.FrameBytes)*r.Rate))
	printf(w, "acquired %d frames, dropped %d, %d overflows", r.Acquired, r.Dropped, r.Overflows)
	if r.Acquired > 1 {
		printf(w, "interval mean %v, stddev %v, p99 %v",
			seconds(r.MeanInterval), seconds(r.StdDevInterval), seconds(r.P99Interval))
	}
	if r.Dropped > 0 {
		warningf(w, "%d frames were dropped; acquire faster or add buffers", r.Dropped)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond)
}
