package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phambaophuc/avatar-studio/internal/geometry"
	"github.com/phambaophuc/avatar-studio/internal/services/compositor"
	"github.com/phambaophuc/avatar-studio/internal/services/editor"
	"github.com/phambaophuc/avatar-studio/pkg/utils"
	"go.uber.org/zap"
)

type exportCmd struct {
	Input   string    `arg:"" help:"Source image file." type:"existingfile"`
	Rotate  float64   `help:"Clockwise rotation in degrees."`
	Zoom    float64   `help:"Zoom factor for the default square crop." default:"1"`
	FlipH   bool      `help:"Mirror horizontally." name:"flip-h"`
	FlipV   bool      `help:"Mirror vertically." name:"flip-v"`
	Crop    []float64 `help:"Crop x,y,w,h in rotated pixels. Defaults to the centred square." sep:","`
	Quality int       `help:"JPEG quality." default:"90"`
	Out     string    `help:"Output file. Defaults to <name>-edited.jpg next to the input." type:"path"`
}

func (cmd *exportCmd) Run(ctx context.Context, logger *zap.Logger) error {
	if len(cmd.Crop) != 0 && len(cmd.Crop) != 4 {
		return fmt.Errorf("--crop needs x,y,w,h, got %d values", len(cmd.Crop))
	}

	comp := compositor.NewCompositor(nil, cmd.Quality, logger)
	session := editor.NewSession("cli", comp, editor.SessionOptions{
		Tracker: editor.SquareCropTracker{},
		Logger:  logger,
	})

	if err := session.LoadImage(ctx, editor.NewFileSource(cmd.Input)); err != nil {
		return err
	}
	if err := cmd.apply(session); err != nil {
		return err
	}

	results, err := session.Save(ctx)
	if err != nil {
		return err
	}
	res := <-results
	if res.Err != nil {
		return res.Err
	}

	out := cmd.Out
	if out == "" {
		out = filepath.Join(filepath.Dir(cmd.Input), utils.ExportFileName(res.Output.FileName))
	}
	if err := os.WriteFile(out, res.Output.Bytes, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	logger.Info("Exported image",
		zap.String("output", out),
		zap.Int("width", res.Output.Width),
		zap.Int("height", res.Output.Height),
	)
	return nil
}

func (cmd *exportCmd) apply(s *editor.Session) error {
	if cmd.Rotate != 0 {
		if err := s.RotateBy(cmd.Rotate); err != nil {
			return err
		}
	}
	if cmd.FlipH {
		if err := s.ToggleFlipHorizontal(); err != nil {
			return err
		}
	}
	if cmd.FlipV {
		if err := s.ToggleFlipVertical(); err != nil {
			return err
		}
	}
	if cmd.Zoom > 1 {
		if err := s.SetZoom(cmd.Zoom); err != nil {
			return err
		}
	}
	if len(cmd.Crop) == 4 {
		return s.ReportCrop(geometry.Rect{
			X:      cmd.Crop[0],
			Y:      cmd.Crop[1],
			Width:  cmd.Crop[2],
			Height: cmd.Crop[3],
		})
	}
	return nil
}
