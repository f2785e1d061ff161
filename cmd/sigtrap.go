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
	"os"
	"os/signal"

	"github.com/timelinize/lhconvert/locationhistory"
)

// trapSignals creates signal handlers for all applicable signals for
// this system. Signals that end the process call cancel, so the
// conversion stops and removes its unfinished output.
func trapSignals(cancel context.CancelFunc) {
	trapSignalsCrossPlatform(cancel)
	trapSignalsPosix(cancel)
}

// trapSignalsCrossPlatform captures SIGINT, which cancels the conversion.
// A second interrupt signal exits the process immediately.
func trapSignalsCrossPlatform(cancel context.CancelFunc) {
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)

		for i := 0; true; i++ {
			<-sig

			if i > 0 {
				locationhistory.Log.Fatal("SIGINT: force quit")
			}

			locationhistory.Log.Warn("SIGINT: stopping conversion")
			cancel()
		}
	}()
}
