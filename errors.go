// Copyright 2024 The Cockroach Authors
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

package dict

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrKeyMissing marks every error returned for a key that is not present
// in a Map. Test for it with errors.Is.
var ErrKeyMissing = errors.New("key missing")

// KeyError is the error returned by Map.Lookup and Map.Delete when the key
// is not present. The host runtime surfaces it as KeyError.
type KeyError struct {
	Key any
}

var _ error = (*KeyError)(nil)

func (e *KeyError) Error() string {
	return "KeyError: " + e.Repr()
}

// Repr formats the missing key the way the host prints it: strings are
// quoted, everything else uses its default format.
func (e *KeyError) Repr() string {
	if s, ok := e.Key.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.Key)
}

func newKeyError(key any) error {
	return errors.Mark(&KeyError{Key: key}, ErrKeyMissing)
}
