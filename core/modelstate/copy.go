// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package modelstate

import (
	"github.com/mohae/deepcopy"
)

// copyDataMap returns a copy of data sharing no maps or slices with it.
func copyDataMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return deepcopy.Copy(data).(map[string]any)
}
