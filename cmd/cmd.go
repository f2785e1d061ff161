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

// Package lhcmd facilitates the command line interface (CLI)
// and implements the main().
package lhcmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timelinize/lhconvert/emit"
	"github.com/timelinize/lhconvert/internal/config"
	"github.com/timelinize/lhconvert/locationhistory"
)

// Main runs the command line interface. It exits the process on failure.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trapSignals(cancel)

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		locationhistory.Log.Fatal("conversion failed", zap.Error(err))
	}
}

// flagValues are the targets of the command line flags. Only flags that
// were set on the command line are applied over the config file.
type flagValues struct {
	config.Config
	accuracy   float64
	configFile string
	noProgress bool
}

func newRootCommand() *cobra.Command {
	fv := &flagValues{Config: *config.Default()}

	cmd := &cobra.Command{
		Use:   "lhconvert INPUT OUTPUT",
		Short: "Convert the location history of a Google Takeout export",
		Long: `Converts the location history (Records.json) of a Google Takeout
export to KML, GPX, GeoJSON, CSV, JSON/JS or a SQLite database.

INPUT may be Records.json itself (optionally compressed), the Takeout
archive, or a folder containing the export.`,
		Args:          cobra.ExactArgs(2), //nolint:mnd
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// past argument parsing, errors aren't about usage
			cmd.SilenceUsage = true

			cfg, err := fv.resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := locationhistory.SetLogLevel(cfg.LogLevel); err != nil {
				return err
			}
			run, err := cfg.Resolve()
			if err != nil {
				return err
			}
			_, err = convert(cmd.Context(), args[0], args[1], run, newProgress(!fv.noProgress))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fv.Format, "format", "f", fv.Format, "output format: "+strings.Join(formatNames(), ", "))
	f.BoolVarP(&fv.Iterative, "iterative", "i", false, "decode the input incrementally instead of loading it into memory")
	f.StringVarP(&fv.StartDate, "startdate", "s", "", "only include points on or after this date (YYYY-MM-DD, UTC)")
	f.StringVarP(&fv.EndDate, "enddate", "e", "", "only include points up to this date (YYYY-MM-DD, UTC)")
	f.StringVar(&fv.StartTime, "starttime", "", "time of day on the start date (HH:MM, UTC)")
	f.StringVar(&fv.EndTime, "endtime", "", "time of day on the end date; exclusive (HH:MM, UTC)")
	f.Float64VarP(&fv.accuracy, "accuracy", "a", 0, "only include points with an accuracy value of at most this many meters")
	f.BoolVarP(&fv.Chronological, "chronological", "c", false, "sort points by time before writing them")
	f.StringVarP(&fv.Variable, "variable", "v", fv.Variable, "JavaScript variable name for the js and jsfull formats")
	f.StringVar(&fv.Separator, "separator", fv.Separator, "field separator for the CSV formats")
	f.StringArrayVarP(&fv.Polygon, "polygon", "p", nil, `polygon vertex "lat,lon" (repeat the flag; two vertices make a rectangle)`)
	f.StringVarP(&fv.FilteredDevices, "filtered-devices", "d", "", `device tags to exclude, comma-separated, or "auto"`)
	f.BoolVar(&fv.FixOverflow, "fix-overflow", false, "wrap coordinates that overflowed a 32-bit integer")
	f.DurationVar(&fv.MaxGap, "max-gap", fv.MaxGap, "time without points that starts a new track")
	f.Float64Var(&fv.MaxDistanceKm, "max-distance-km", fv.MaxDistanceKm, "distance between points that starts a new track")
	f.StringVar(&fv.LogLevel, "log-level", fv.LogLevel, "log level: debug, info, warn or error")
	f.StringVar(&fv.configFile, "config", "", "YAML config file; flags override its values")
	f.BoolVar(&fv.noProgress, "no-progress", false, "don't show progress")

	return cmd
}

// flagFields copies the value of each flag to a config.
var flagFields = map[string]func(dst *config.Config, fv *flagValues){
	"format":           func(dst *config.Config, fv *flagValues) { dst.Format = fv.Format },
	"iterative":        func(dst *config.Config, fv *flagValues) { dst.Iterative = fv.Iterative },
	"startdate":        func(dst *config.Config, fv *flagValues) { dst.StartDate = fv.StartDate },
	"enddate":          func(dst *config.Config, fv *flagValues) { dst.EndDate = fv.EndDate },
	"starttime":        func(dst *config.Config, fv *flagValues) { dst.StartTime = fv.StartTime },
	"endtime":          func(dst *config.Config, fv *flagValues) { dst.EndTime = fv.EndTime },
	"accuracy":         func(dst *config.Config, fv *flagValues) { acc := fv.accuracy; dst.Accuracy = &acc },
	"chronological":    func(dst *config.Config, fv *flagValues) { dst.Chronological = fv.Chronological },
	"variable":         func(dst *config.Config, fv *flagValues) { dst.Variable = fv.Variable },
	"separator":        func(dst *config.Config, fv *flagValues) { dst.Separator = fv.Separator },
	"polygon":          func(dst *config.Config, fv *flagValues) { dst.Polygon = fv.Polygon },
	"filtered-devices": func(dst *config.Config, fv *flagValues) { dst.FilteredDevices = fv.FilteredDevices },
	"fix-overflow":     func(dst *config.Config, fv *flagValues) { dst.FixOverflow = fv.FixOverflow },
	"max-gap":          func(dst *config.Config, fv *flagValues) { dst.MaxGap = fv.MaxGap },
	"max-distance-km":  func(dst *config.Config, fv *flagValues) { dst.MaxDistanceKm = fv.MaxDistanceKm },
	"log-level":        func(dst *config.Config, fv *flagValues) { dst.LogLevel = fv.LogLevel },
}

// resolveConfig returns the config file's values (or the defaults)
// with the flags that were set applied over them.
func (fv *flagValues) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if fv.configFile != "" {
		var err error
		cfg, err = config.Load(fv.configFile)
		if err != nil {
			return nil, err
		}
	}
	for name, apply := range flagFields {
		if cmd.Flags().Changed(name) {
			apply(cfg, fv)
		}
	}
	return cfg, nil
}

func formatNames() []string {
	var names []string
	for _, f := range emit.Formats() {
		names = append(names, f.String())
	}
	return names
}
