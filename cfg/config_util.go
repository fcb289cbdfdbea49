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

import (
	"fmt"

	"github.com/spf13/viper"
)

// Decode unmarshals v (the process-wide viper instance, already populated
// from flags, environment, and an optional config file) into a Config,
// validates it, and returns it.
func Decode(v *viper.Viper) (Config, error) {
	c := GetDefaultConfig()

	if err := v.Unmarshal(&c, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := ValidateConfig(&c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}
