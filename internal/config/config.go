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

// Package config holds the settings of a conversion run, loaded from a
// YAML file and command line flags, and turns them into the options of
// the locationhistory and emit packages.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/timelinize/lhconvert/emit"
	"github.com/timelinize/lhconvert/locationhistory"
)

// Config describes a conversion run. The string values are parsed by
// Resolve; validation only checks their syntax.
type Config struct {
	// Output format; see emit.Formats.
	Format string `yaml:"format" validate:"required,lhformat"`

	// Decode the input incrementally instead of reading it into
	// memory all at once.
	Iterative bool `yaml:"iterative"`

	// Sort points by time before writing them.
	Chronological bool `yaml:"chronological"`

	// Time window, in UTC. The end date is inclusive unless an end
	// time is given, which is exclusive.
	StartDate string `yaml:"start_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime string `yaml:"start_time" validate:"omitempty,datetime=15:04"`
	EndDate   string `yaml:"end_date" validate:"omitempty,datetime=2006-01-02"`
	EndTime   string `yaml:"end_time" validate:"omitempty,datetime=15:04"`

	// Maximum accuracy value (in meters) of included points.
	Accuracy *float64 `yaml:"accuracy" validate:"omitempty,gt=0"`

	// Vertices of the region to include, as "lat,lon". Two
	// vertices are opposite corners of a rectangle.
	Polygon []string `yaml:"polygon" validate:"omitempty,min=2,dive,required"`

	// Comma-separated device tags to exclude, or "auto" to exclude
	// devices that reported from an ignored platform.
	FilteredDevices string `yaml:"filtered_devices"`

	// Variable name for the js and jsfull formats.
	Variable string `yaml:"variable" validate:"omitempty,jsidentifier"`

	// Field separator for the CSV formats; a single character.
	Separator string `yaml:"separator"`

	// Wrap coordinates that overflowed a 32-bit integer.
	FixOverflow bool `yaml:"fix_overflow"`

	// Thresholds for splitting tracks.
	MaxGap        time.Duration `yaml:"max_gap" validate:"gte=0s"`
	MaxDistanceKm float64       `yaml:"max_distance_km" validate:"gte=0"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := new(Config)
	cfg.fillDefaults()
	return cfg
}

func (cfg *Config) fillDefaults() {
	if cfg.Format == "" {
		cfg.Format = string(emit.FormatKML)
	}
	if cfg.Variable == "" {
		cfg.Variable = emit.DefaultVariable
	}
	if cfg.Separator == "" {
		cfg.Separator = ","
	}
	if cfg.MaxGap == 0 {
		cfg.MaxGap = locationhistory.DefaultMaxGap
	}
	if cfg.MaxDistanceKm == 0 {
		cfg.MaxDistanceKm = locationhistory.DefaultMaxDistanceKm
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Load reads and validates the configuration file at filename. Values
// not in the file have their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Unknown keys are
// an error.
func Parse(data []byte) (*Config, error) {
	cfg := new(Config)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding YAML: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the syntax of all values.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("lhformat", func(fl validator.FieldLevel) bool { //nolint:errcheck
		_, err := emit.ParseFormat(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("jsidentifier", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return jsIdentifier.MatchString(fl.Field().String())
	})
	return v
}

// jsIdentifier matches a plain (ASCII) JavaScript identifier.
var jsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
