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

package cfg

// Default values used both by BindFlags and by GetDefaultConfig. Kept as
// named constants, rather than inline literals, so tests and docs can
// refer to the same numbers the flags advertise.
const (
	DefaultBlockCacheCapacity = 64
	DefaultPhysicalFrames     = 4096
	DefaultUserStackPages     = 16
	DefaultKernelStackPages   = 2
	DefaultBigStride          = 10000
	DefaultPriority           = 16
	DefaultTimeSliceMs        = 10

	DefaultFileMode Octal = 0644
	DefaultDirMode  Octal = 0755

	DefaultLogFormat          = "text"
	DefaultLogMaxFileSizeMB   = 64
	DefaultLogBackupFileCount = 3
)
