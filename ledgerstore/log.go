// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledgerstore

import "github.com/decred/slog"

// log is the subsystem logger for this package, disabled by default.
var log = slog.Disabled

// UseLogger sets the package-wide logger used by Store.
func UseLogger(logger slog.Logger) {
	log = logger
}
