// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package instruction

import "github.com/decred/slog"

// log is the subsystem logger for this package. It starts disabled and
// stays silent until a caller wires a real backend in via UseLogger.
var log = slog.Disabled

// UseLogger sets the package-wide logger used by Engine. This should be
// called before Engine is used if the caller is interested in Engine's
// logging output.
func UseLogger(logger slog.Logger) {
	log = logger
}
