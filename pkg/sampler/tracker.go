// Copyright 2017 Capsule8, Inc.
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

package sampler

import (
	"sort"
	"sync"
)

// PageCount is the number of accepted samples seen for one page.
type PageCount struct {
	Page  uint64
	Count uint64
}

// PageTracker counts accepted samples per page. It is safe for concurrent
// use.
type PageTracker struct {
	sync.Mutex
	counts map[uint64]uint64
}

// NewPageTracker returns an empty PageTracker.
func NewPageTracker() *PageTracker {
	return &PageTracker{
		counts: make(map[uint64]uint64),
	}
}

// Update records one sample on page.
func (pt *PageTracker) Update(page uint64) {
	pt.Lock()
	pt.counts[page]++
	pt.Unlock()
}

// Len returns the number of distinct pages seen.
func (pt *PageTracker) Len() int {
	pt.Lock()
	defer pt.Unlock()
	return len(pt.counts)
}

// sorted returns every page ordered by count, highest first. Pages with
// equal counts are ordered by address.
func (pt *PageTracker) sorted() []PageCount {
	pt.Lock()
	pages := make([]PageCount, 0, len(pt.counts))
	for page, count := range pt.counts {
		pages = append(pages, PageCount{Page: page, Count: count})
	}
	pt.Unlock()

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Count != pages[j].Count {
			return pages[i].Count > pages[j].Count
		}
		return pages[i].Page < pages[j].Page
	})
	return pages
}

// Hottest returns up to n pages with the most samples, hottest first.
func (pt *PageTracker) Hottest(n int) []PageCount {
	if n <= 0 {
		return nil
	}
	pages := pt.sorted()
	if n < len(pages) {
		pages = pages[:n]
	}
	return pages
}

// Coldest returns up to n pages with the fewest samples, coldest first.
func (pt *PageTracker) Coldest(n int) []PageCount {
	if n <= 0 {
		return nil
	}
	pages := pt.sorted()
	if n < len(pages) {
		pages = pages[len(pages)-n:]
	}
	for i, j := 0, len(pages)-1; i < j; i, j = i+1, j-1 {
		pages[i], pages[j] = pages[j], pages[i]
	}
	return pages
}
