// Copyright 2024 Google Inc. All Rights Reserved.
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

package kernel

import (
	"os"

	"github.com/chaoskernel/rvos/internal/syscall"
	"github.com/chaoskernel/rvos/internal/task"
)

// NoopHart is the default Hart: it reports every thread as having
// nothing left to run. A kernel built with it boots, loads init, and
// returns immediately without dispatching any syscalls, since there is
// no instruction interpreter behind it to generate trap requests.
// Scripted boot tests install their own replaying Hart via SetHart.
type NoopHart struct{}

func (NoopHart) RunUntilTrap(t *task.Thread) (num syscall.Number, a0, a1, a2, a3, a4, a5 uint64, ok bool) {
	return 0, 0, 0, 0, 0, 0, 0, false
}

func readHostFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
