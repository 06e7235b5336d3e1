package cli

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/iidc/config"
)

// ConfigGenerateAction prints or saves the best guess configuration of a simulated camera.
func ConfigGenerateAction(c *cli.Context) error {
	simCam, _ := newSimCamera(simOptions{format0: c.Bool(configFlagFormat0)})
	conf, err := config.Generate(c.Context, simCam)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := config.Write(&buf, conf); err != nil {
		return err
	}

	dir := c.String(configFlagOut)
	if dir == "" {
		printf(c.App.Writer, "%s", bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
		return nil
	}
	id, err := simCam.Identity(c.Context)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, config.Candidates(id)[0])
	//nolint:gosec
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	infof(c.App.Writer, "wrote %s", path)
	return nil
}

// ConfigCheckAction reads and validates each named configuration file.
func ConfigCheckAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no configuration files given")
	}
	var err error
	for _, path := range c.Args().Slice() {
		conf, readErr := config.ReadFile(path)
		if readErr != nil {
			err = multierr.Combine(err, readErr)
			continue
		}
		printf(c.App.Writer, "%s: ok (%v %v, %v, drop frames %t)", path, conf.Format, conf.Mode, conf.Speed, conf.DropFrames)
	}
	return err
}
