package cli

import (
	"bytes"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
)

func readStateFile(path string) (state.CameraState, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return state.CameraState{}, errors.Wrapf(err, "opening %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	s, err := state.Read(f)
	if err != nil {
		return state.CameraState{}, errors.Wrapf(err, "in %q", path)
	}
	return s, nil
}

func writeStateFile(path string, s state.CameraState) error {
	var buf bytes.Buffer
	if err := state.Write(&buf, s); err != nil {
		return err
	}
	//nolint:gosec
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	return nil
}

// StateCheckAction reads a camera state file and summarizes the frames it describes.
func StateCheckAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("no state file given")
	}
	s, err := readStateFile(path)
	if err != nil {
		return err
	}
	frameBytes, err := pixel.FrameBytes(s.Width, s.Height, s.Coding)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s: %dx%d+%d+%d %v at %.4g fps, shutter %.4g s",
		path, s.Width, s.Height, s.Left, s.Top, s.Coding, s.FrameRate, s.Shutter)
	printf(c.App.Writer, "frame %s, ring of %d buffers %s, %s/s",
		units.BytesSize(float64(frameBytes)),
		s.NumFrameBuffers,
		units.BytesSize(float64(frameBytes*s.NumFrameBuffers)),
		units.HumanSize(float64(frameBytes)*s.FrameRate))
	return nil
}

// StateSetAction changes fields of a camera state file, given as field=value arguments.
func StateSetAction(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		return errors.New("usage: state set FILE FIELD=VALUE...")
	}
	path := args[0]
	s, err := readStateFile(path)
	if err != nil {
		return err
	}
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return errors.Errorf("expected field=value, got %q", arg)
		}
		if err := state.Apply(&s, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}

	out := c.String(stateFlagOut)
	if out == "" {
		out = path
	}
	if err := writeStateFile(out, s); err != nil {
		return err
	}
	infof(c.App.Writer, "wrote %s", out)
	return nil
}
