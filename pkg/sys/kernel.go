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

package sys

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Version is a kernel version in major, minor, patchlevel form.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is major.minor or newer.
func (v Version) AtLeast(major, minor int) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// ParseKernelRelease extracts the version from a release string such as
// "5.15.0-91-generic". Parsing stops at the first character that is not a
// digit or a dot.
func ParseKernelRelease(release string) Version {
	var (
		b    int
		bits [3]int
	)
	for i := 0; i < len(release) && b < len(bits); i++ {
		switch release[i] {
		case '.':
			b++
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			bits[b] = bits[b]*10 + int(release[i]) - '0'
		default:
			b = len(bits)
		}
	}

	return Version{Major: bits[0], Minor: bits[1], Patch: bits[2]}
}

// KernelVersion returns the version of the currently running kernel.
func KernelVersion() (Version, error) {
	var buf unix.Utsname
	if err := unix.Uname(&buf); err != nil {
		return Version{}, err
	}
	return ParseKernelRelease(unix.ByteSliceToString(buf.Release[:])), nil
}
