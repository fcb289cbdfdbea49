// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides an injectable source of time, so that the
// scheduler's sleep/timeout paths and the kernel's gettimeofday/times
// syscalls can be driven by simulated time in tests.
package clock

import "time"

// Clock is satisfied by RealClock, FakeClock, and SimulatedClock.
type Clock interface {
	// Now returns the current time according to the clock.
	Now() time.Time

	// After returns a channel on which the current time is sent once the
	// given duration has elapsed according to the clock.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = &FakeClock{}
	_ Clock = &SimulatedClock{}
)
