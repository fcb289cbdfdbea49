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

package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForkCreatesChildAndWait4Reaps(t *testing.T) {
	root := NewRootProcess()
	root.Fds = nil

	child := NewChildProcess(root)
	NewThread(child, 16, 10000, 2)
	require.Len(t, root.Children, 1)

	_, _, found, _ := Wait4(root, -1)
	require.False(t, found, "child has not exited yet")

	Exit(child, 42, root)

	pid, code, found, _ := Wait4(root, -1)
	require.True(t, found)
	require.Equal(t, child.Pid, pid)
	require.Equal(t, 42, code)
	require.Empty(t, root.Children, "reaped child must be removed")
}

func TestWait4SpecificPidIgnoresOthers(t *testing.T) {
	root := NewRootProcess()
	a := NewChildProcess(root)
	b := NewChildProcess(root)
	Exit(b, 7, root)

	_, _, found, anyMatch := Wait4(root, a.Pid)
	require.False(t, found)
	require.True(t, anyMatch, "a exists but hasn't exited")

	pid, code, found, _ := Wait4(root, b.Pid)
	require.True(t, found)
	require.Equal(t, b.Pid, pid)
	require.Equal(t, 7, code)
}

func TestExitReparentsOrphansToRoot(t *testing.T) {
	root := NewRootProcess()
	mid := NewChildProcess(root)
	grandchild := NewChildProcess(mid)

	Exit(mid, 0, root)

	require.Contains(t, root.Children, grandchild)
	require.Equal(t, root, grandchild.Parent)
}

func TestCloneThreadRequiresNonZeroStack(t *testing.T) {
	proc := NewRootProcess()
	_, err := CloneThread(proc, 16, 10000, 2, CloneRequest{Stack: 0})
	require.ErrorIs(t, err, ErrBadStack)

	th, err := CloneThread(proc, 16, 10000, 2, CloneRequest{Stack: 0x4000})
	require.NoError(t, err)
	require.EqualValues(t, 0x4000, th.TrapCtx.UserSP)
}

func TestSignalMaskedThenDeliveredOnUnmask(t *testing.T) {
	proc := NewRootProcess()
	ApplySigProcMask(proc, SigBlock, 1<<(SIGUSR1-1))

	Raise(proc, SIGUSR1)
	_, ok := NextDeliverable(proc)
	require.False(t, ok, "masked signal must not be delivered")

	ApplySigProcMask(proc, SigUnblock, 1<<(SIGUSR1-1))
	sig, ok := NextDeliverable(proc)
	require.True(t, ok)
	require.Equal(t, SIGUSR1, sig)

	_, ok = NextDeliverable(proc)
	require.False(t, ok, "signal must be delivered exactly once")
}

func TestSigKillCannotBeMasked(t *testing.T) {
	proc := NewRootProcess()
	ApplySigProcMask(proc, SigBlock, 1<<(SIGKILL-1))
	require.Zero(t, proc.SigMask&(1<<(SIGKILL-1)))
}

func TestStrideAccumulatesByPassOnEachRun(t *testing.T) {
	proc := NewRootProcess()
	const bigStride = 10000
	th := NewThread(proc, 16, bigStride, 2)
	require.EqualValues(t, bigStride/16, th.Pass)

	th.Stride += th.Pass
	require.EqualValues(t, bigStride/16, th.Stride)
}
