package analysis

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/san-kum/cosim/internal/config"
	"github.com/san-kum/cosim/internal/experiment"
	"golang.org/x/sync/errgroup"
)

// Sweep builds and runs every configuration, at most parallel at a time.
// Cases share nothing; each one writes its output under OutputRoot/<index>_<name>.
// Results keep the order of cfgs. The first failure cancels the rest.
func Sweep(ctx context.Context, cfgs []*config.Config, opts experiment.Options, parallel int) ([]*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	results := make([]*Result, len(cfgs))
	for i, cfg := range cfgs {
		idx, cfg := i, cfg
		g.Go(func() error {
			caseOpts := opts
			caseOpts.OutputRoot = filepath.Join(opts.OutputRoot, fmt.Sprintf("%02d_%s", idx, cfg.Name))
			c, err := experiment.Build(cfg, caseOpts)
			if err != nil {
				return fmt.Errorf("sweep case %d (%s): %w", idx, cfg.Name, err)
			}
			res, err := NewDriver(c, opts.Logger).Run(ctx, RunConfigFrom(cfg))
			if err != nil {
				return fmt.Errorf("sweep case %d (%s): %w", idx, cfg.Name, err)
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RatioSweep derives one configuration per timestep ratio from base.
func RatioSweep(base *config.Config, ratios []int) []*config.Config {
	cfgs := make([]*config.Config, 0, len(ratios))
	for _, r := range ratios {
		cfg := base.Clone()
		cfg.Name = fmt.Sprintf("%s_r%d", base.Name, r)
		cfg.SetTimestepRatio(float64(r))
		cfgs = append(cfgs, cfg)
	}
	return cfgs
}
