// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package events

import "errors"

// ErrNATSNotEnabled is returned by NewNATSBus when the binary was built
// without the nats build tag.
var ErrNATSNotEnabled = errors.New("NATS event backend requires a build with -tags nats")
