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
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSameFile is returned when the output would overwrite the input.
var ErrSameFile = errors.New("input and output are the same file")

// checkDistinct makes sure that writing output can't destroy input.
func checkDistinct(input, output string) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if absIn == absOut {
		return fmt.Errorf("%w: %s", ErrSameFile, input)
	}

	// same file by another name, e.g. a link
	inInfo, inErr := os.Stat(input)
	outInfo, outErr := os.Stat(output)
	if inErr == nil && outErr == nil && os.SameFile(inInfo, outInfo) {
		return fmt.Errorf("%w: %s and %s", ErrSameFile, input, output)
	}
	return nil
}

// outputFile is a temporary file next to the output path. It only
// replaces the output when committed, so a failed run never leaves a
// partial output behind.
type outputFile struct {
	*os.File
	target    string
	committed bool
}

func createOutput(target string) (*outputFile, error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return &outputFile{File: f, target: target}, nil
}

// commit closes the file and moves it into place.
func (of *outputFile) commit() error {
	if err := of.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Chmod(of.Name(), 0644); err != nil { //nolint:mnd
		return fmt.Errorf("setting output file permissions: %w", err)
	}
	if err := os.Rename(of.Name(), of.target); err != nil {
		return fmt.Errorf("moving output file into place: %w", err)
	}
	of.committed = true
	return nil
}

// discard removes the file unless it was committed.
func (of *outputFile) discard() {
	if of.committed {
		return
	}
	of.Close()
	os.Remove(of.Name())
}
