// Copyright 2025 Edulith Labs
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

package directory

// Entry holds display metadata for a subject. It is informational
// only and never participates in issuance decisions.
type Entry struct {
	SubjectName  string
	CategoryName string
}

// Directory resolves display metadata for subjects
type Directory interface {
	Lookup(subjectId string) (Entry, bool)
}

// StaticDirectory is a fixed in-memory directory, typically loaded
// from configuration at startup
type StaticDirectory struct {
	entries map[string]Entry
}

// NewStaticDirectory creates a directory from the given entries
func NewStaticDirectory(entries map[string]Entry) *StaticDirectory {
	if entries == nil {
		entries = make(map[string]Entry)
	}
	return &StaticDirectory{entries: entries}
}

func (d *StaticDirectory) Lookup(subjectId string) (Entry, bool) {
	entry, ok := d.entries[subjectId]
	return entry, ok
}
