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

	"go.uber.org/zap"
)

// DetectIgnoredDevices scans src to the end and returns the tags of all
// devices that reported at least one record from an ignored platform
// (such as an emulator). Excluding those devices also drops their records
// that don't carry any platform information.
//
// This consumes src, so the input has to be opened again to process it.
func DetectIgnoredDevices(ctx context.Context, src RecordSource) (map[int64]struct{}, error) {
	devices := make(map[int64]struct{})
	for {
		rec, err := src.NextRecord(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if rec.DeviceTag == nil || validPlatform(rec.PlatformType, rec.Platform) {
			continue
		}
		if _, ok := devices[*rec.DeviceTag]; !ok {
			Log.Named("devices").Info("ignoring device",
				zap.Int64("device_tag", *rec.DeviceTag),
				zap.String("platform", rec.Platform))
			devices[*rec.DeviceTag] = struct{}{}
		}
	}
	return devices, nil
}
