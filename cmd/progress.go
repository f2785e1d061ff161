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
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progress shows how many points have been written. The total isn't
// known in advance, so it is a spinner with a counter. A nil or disabled
// progress does nothing.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(enabled bool) *progress {
	if !enabled {
		return &progress{}
	}
	return &progress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("converting"),
			progressbar.OptionSpinnerType(14), //nolint:mnd
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("points"),
			progressbar.OptionThrottle(100*time.Millisecond), //nolint:mnd
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *progress) add(n int) {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *progress) finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
