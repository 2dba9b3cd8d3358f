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

package directory_test

import (
	"testing"

	"github.com/edulith/sigil/directory"
	"github.com/stretchr/testify/assert"
)

func TestStaticDirectoryLookup(t *testing.T) {
	dir := directory.NewStaticDirectory(map[string]directory.Entry{
		"course-101": {
			SubjectName:  "Intro to Graphs",
			CategoryName: "Mathematics",
		},
	})

	entry, ok := dir.Lookup("course-101")
	assert.True(t, ok)
	assert.Equal(t, "Intro to Graphs", entry.SubjectName)

	_, ok = dir.Lookup("course-999")
	assert.False(t, ok)
}

func TestStaticDirectoryNilEntries(t *testing.T) {
	dir := directory.NewStaticDirectory(nil)
	_, ok := dir.Lookup("course-101")
	assert.False(t, ok)
}
