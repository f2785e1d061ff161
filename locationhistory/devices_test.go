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

package locationhistory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelinize/lhconvert/internal/testhelpers"
)

func TestDetectIgnoredDevices(t *testing.T) {
	useTestLogger(t)

	const emulator = `"platformType": "ANDROID", "platform": "android/google/sdk_gphone_x86/generic_x86:9/PSR1.180720.075"`
	doc := testhelpers.LocationsDoc(
		testhelpers.Record(1500000000000, 1, 1, `"deviceTag": 1, `+emulator),
		testhelpers.Record(1500000060000, 2, 2, `"deviceTag": 1`),
		testhelpers.Record(1500000120000, 3, 3, `"deviceTag": 2, "platformType": "ANDROID", "platform": "google/sunfish/sunfish:11"`),
		testhelpers.Record(1500000180000, 4, 4, `"deviceTag": 3, `+emulator),
		testhelpers.Record(1500000240000, 5, 5, `"deviceTag": 3, `+emulator),
		testhelpers.Record(1500000300000, 6, 6, emulator),
		testhelpers.Record(1500000360000, 7, 7, ""),
	)

	devices, err := DetectIgnoredDevices(context.Background(), newSource(t, doc, ModeStream))
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{1: {}, 3: {}}, devices)

	// second pass over the input, like the CLI does
	points, stats := runPipeline(t, doc, ModeStream, Options{
		Filter: Filter{ExcludeDevices: devices},
	})
	var lats []int64
	for _, p := range points {
		lats = append(lats, p.LatitudeE7)
	}
	assert.Equal(t, []int64{3, 7}, lats)
	assert.Equal(t, 5, stats.Filtered)
}

func TestDetectIgnoredDevicesNone(t *testing.T) {
	useTestLogger(t)

	devices, err := DetectIgnoredDevices(context.Background(), newSource(t, sampleDoc, ModeBulk))
	require.NoError(t, err)
	assert.Empty(t, devices)
}
