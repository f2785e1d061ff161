/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package lhcmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/timelinize/lhconvert/emit"
	"github.com/timelinize/lhconvert/internal/config"
	"github.com/timelinize/lhconvert/locationhistory"
)

// convert reads the location history at input and writes it to output
// as configured by run.
func convert(ctx context.Context, input, output string, run *config.Run, prog *progress) (locationhistory.Stats, error) {
	logger := locationhistory.Log.Named("convert")

	if err := checkDistinct(input, output); err != nil {
		return locationhistory.Stats{}, err
	}

	if run.Mode == locationhistory.ModeStream && run.Options.Chronological {
		logger.Warn("sorting points chronologically holds all of them in memory, even with iterative decoding")
	}

	if run.AutoDevices {
		devices, err := detectDevices(ctx, input, run.Mode)
		if err != nil {
			return locationhistory.Stats{}, err
		}
		run.Options.Filter.ExcludeDevices = devices
	}

	in, err := locationhistory.OpenInput(ctx, input)
	if err != nil {
		return locationhistory.Stats{}, err
	}
	defer in.Close()

	logger.Info("reading location history",
		zap.String("input", input),
		zap.Stringer("mode", run.Mode))

	src, err := locationhistory.NewRecordSource(in, run.Mode)
	if err != nil {
		return locationhistory.Stats{}, err
	}
	pipeline := locationhistory.NewPipeline(src, run.Options)

	out, err := createOutput(output)
	if err != nil {
		return locationhistory.Stats{}, err
	}
	defer out.discard()

	switch {
	case run.Format.ToFile():
		// the database driver opens the file by name
		out.Close()
		err = writeSQLite(ctx, pipeline, out.Name(), prog)
	case run.Format.Tracks():
		err = writeTracks(ctx, pipeline, out, run, prog)
	default:
		err = writePoints(ctx, pipeline, out, run, prog)
	}
	prog.finish()
	if err != nil {
		return pipeline.Stats(), err
	}

	if err := out.commit(); err != nil {
		return pipeline.Stats(), err
	}

	pipeline.LogSummary()
	logger.Info("wrote output",
		zap.String("output", output),
		zap.Stringer("format", run.Format))

	return pipeline.Stats(), nil
}

// detectDevices makes a first pass over the input to find the devices
// to exclude.
func detectDevices(ctx context.Context, input string, mode locationhistory.Mode) (map[int64]struct{}, error) {
	in, err := locationhistory.OpenInput(ctx, input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	src, err := locationhistory.NewRecordSource(in, mode)
	if err != nil {
		return nil, err
	}
	devices, err := locationhistory.DetectIgnoredDevices(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("detecting devices to exclude: %w", err)
	}
	return devices, nil
}

func writePoints(ctx context.Context, pipeline *locationhistory.Pipeline, out *outputFile, run *config.Run, prog *progress) error {
	pw, err := emit.NewPointWriter(out, run.Format, run.Emit)
	if err != nil {
		return err
	}
	for {
		p, err := pipeline.NextPoint(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			break
		}
		if err := pw.WritePoint(p); err != nil {
			return fmt.Errorf("writing point: %w", err)
		}
		prog.add(1)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func writeTracks(ctx context.Context, pipeline *locationhistory.Pipeline, out *outputFile, run *config.Run, prog *progress) error {
	tw, err := emit.NewTrackWriter(out, run.Format, run.Emit)
	if err != nil {
		return err
	}
	if err := copyTracks(ctx, pipeline, tw, prog); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func writeSQLite(ctx context.Context, pipeline *locationhistory.Pipeline, dbPath string, prog *progress) error {
	sw, err := emit.NewSQLiteWriter(ctx, dbPath)
	if err != nil {
		return err
	}
	if err := copyTracks(ctx, pipeline, sw, prog); err != nil {
		if abortErr := sw.Abort(); abortErr != nil {
			locationhistory.Log.Error("rolling back database", zap.Error(abortErr))
		}
		return err
	}
	return sw.Close()
}

func copyTracks(ctx context.Context, pipeline *locationhistory.Pipeline, tw emit.TrackWriter, prog *progress) error {
	tracks := pipeline.Tracks()
	for {
		track, err := tracks.NextTrack(ctx)
		if err != nil {
			return err
		}
		if track == nil {
			return nil
		}
		if err := tw.WriteTrack(track); err != nil {
			return fmt.Errorf("writing track: %w", err)
		}
		prog.add(len(track.Points))
	}
}
