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

// Stats describes the occupancy of a Map's slot array.
type Stats struct {
	Size       int
	Capacity   int
	Tombstones int
	// FillRatio is (Size+Tombstones)/Capacity, the quantity compared
	// against the maximum fill ratio of 2/3 after every insertion.
	FillRatio float64
}

// Stats returns a snapshot of the map's occupancy.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Size:       m.used,
		Capacity:   m.capacity(),
		Tombstones: m.tombstones,
	}
	if s.Capacity > 0 {
		s.FillRatio = float64(s.Size+s.Tombstones) / float64(s.Capacity)
	}
	return s
}
