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

package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
)

type ShutdownFn func(ctx context.Context) error

// JoinShutdownFunc combines the provided shutdown functions into a single
// function, used to unwind block-device flush / cache drain / logger
// sync in one deferred call at the end of a boot.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

func CloseFile(file *os.File) {
	if err := file.Close(); err != nil {
		log.Fatalf("error in closing: %v", err)
	}
}

func WriteFile(fileName string, content []byte) (err error) {
	f, err := os.OpenFile(fileName, os.O_RDWR, 0600)
	if err != nil {
		err = fmt.Errorf("open file for write at start: %w", err)
		return
	}

	defer CloseFile(f)

	_, err = f.WriteAt(content, 0)

	return
}

func ReadFile(filePath string) (content []byte, err error) {
	f, err := os.OpenFile(filePath, os.O_RDONLY, 0600)
	if err != nil {
		err = fmt.Errorf("error in the opening the file %w", err)
		return
	}

	defer CloseFile(f)

	content, err = os.ReadFile(f.Name())
	if err != nil {
		err = fmt.Errorf("ReadAll: %w", err)
		return
	}
	return
}
