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

package diag

import (
	"os"
	"strings"
	"sync"
)

// LineSource returns the text of a source line, or "" if the file or line
// does not exist.
type LineSource interface {
	Line(filename string, line int) string
}

// DefaultSource reads lines from the filesystem.
var DefaultSource LineSource = NewFileCache()

// FileCache is a LineSource that reads each file once and keeps its lines.
type FileCache struct {
	mu    sync.Mutex
	files map[string][]string
}

// NewFileCache returns an empty cache.
func NewFileCache() *FileCache {
	return &FileCache{files: make(map[string][]string)}
}

func (c *FileCache) Line(filename string, line int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.files[filename]
	if !ok {
		// Unreadable files are cached as empty.
		if data, err := os.ReadFile(filename); err == nil {
			lines = strings.SplitAfter(string(data), "\n")
		}
		c.files[filename] = lines
	}
	return lineAt(lines, line)
}

// Invalidate drops the cached lines of filename.
func (c *FileCache) Invalidate(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, filename)
}

// Sources is a LineSource over in-memory files keyed by name.
type Sources map[string]string

func (s Sources) Line(filename string, line int) string {
	src, ok := s[filename]
	if !ok {
		return ""
	}
	return lineAt(strings.SplitAfter(src, "\n"), line)
}

func lineAt(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
