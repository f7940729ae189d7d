/*
Copyright © 2026 the dustgrid authors.
This file is part of dustgrid.

dustgrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dustgrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dustgrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package dustgridutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spatialmodel/dustgrid"
)

// Run lists the granules in inputDir, processes them with p into
// outputDir and, if reportFile is not empty, writes the run report there.
// It returns an error if any selected granule could not be processed.
func Run(ctx context.Context, p *dustgrid.Pipeline, inputDir, outputDir, suffix string, recursive bool, reportFile string) (*dustgrid.Report, error) {
	files, err := dustgrid.ListGranules(inputDir, suffix, recursive)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.OutputDir = outputDir
	r, runErr := p.Run(ctx, inputDir, files)
	if r != nil && reportFile != "" {
		if err := writeReport(reportFile, r); err != nil {
			return r, err
		}
	}
	if runErr != nil {
		return r, runErr
	}
	if failed := r.Failed(); len(failed) > 0 {
		return r, fmt.Errorf("dustgrid: %d of %d granules failed, first: %s: %w",
			len(failed), len(files), failed[0].Path, failed[0].Err)
	}
	return r, nil
}

func writeReport(path string, r *dustgrid.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("dustgrid: writing report: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dustgrid: writing report: %w", err)
	}
	if err := r.WriteTOML(f); err != nil {
		f.Close()
		return fmt.Errorf("dustgrid: writing report: %w", err)
	}
	return f.Close()
}
