package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/phambaophuc/avatar-studio/internal/services/normalizer"
	"github.com/phambaophuc/avatar-studio/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

type normalizeCmd struct {
	Inputs   []string `arg:"" help:"Image files or http(s) URLs."`
	Out      string   `help:"Output directory." default:"." type:"path"`
	Size     int      `help:"Side of the square output in pixels." default:"400"`
	Quality  int      `help:"WebP quality." default:"85"`
	MaxBytes int64    `help:"Largest URL download accepted." default:"20971520"`
	Jobs     int      `help:"Images processed at once. Defaults to the CPU count." short:"j"`
}

func (cmd *normalizeCmd) Run(ctx context.Context, logger *zap.Logger) error {
	if err := os.MkdirAll(cmd.Out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cmd.Out, err)
	}

	norm := normalizer.New(normalizer.Options{
		Size:    cmd.Size,
		Encoder: normalizer.WebPEncoder{Quality: cmd.Quality},
	})

	jobs := cmd.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(jobs)

	for _, input := range cmd.Inputs {
		p.Go(func(ctx context.Context) error {
			out, err := cmd.normalizeOne(ctx, norm, input)
			if err != nil {
				logger.Error("Failed to normalize image", zap.String("input", input), zap.Error(err))
				return fmt.Errorf("%s: %w", input, err)
			}
			logger.Info("Normalized image", zap.String("input", input), zap.String("output", out))
			return nil
		})
	}

	return p.Wait()
}

func (cmd *normalizeCmd) normalizeOne(ctx context.Context, norm *normalizer.Normalizer, input string) (string, error) {
	data, err := cmd.read(ctx, input)
	if err != nil {
		return "", err
	}

	encoded, err := norm.Normalize(ctx, data)
	if err != nil {
		return "", err
	}

	out := filepath.Join(cmd.Out, outputName(input))
	if err := os.WriteFile(out, encoded, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	return out, nil
}

func (cmd *normalizeCmd) read(ctx context.Context, input string) ([]byte, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		data, _, err := utils.DownloadImage(ctx, input, cmd.MaxBytes)
		return data, err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input, err)
	}
	return data, nil
}

// outputName maps "photos/me.JPG" or ".../me.png?x=1" to "me.webp".
func outputName(input string) string {
	if i := strings.IndexAny(input, "?#"); i >= 0 && strings.Contains(input, "://") {
		input = input[:i]
	}
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == "/" {
		name = "avatar"
	}
	return name + ".webp"
}
