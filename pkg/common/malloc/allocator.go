// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package malloc

import "math"

// Allocator hands out blocks of memory and reports exhaustion as an error
// instead of terminating. A block is a []byte whose length is the requested
// size; a nil block plays the role of a null address.
type Allocator interface {
	// Allocate returns a block of exactly size bytes. The content is not
	// guaranteed to be zeroed.
	Allocate(size uint64) ([]byte, error)
	// Reallocate resizes block to size bytes, keeping the first
	// min(len(block), size) bytes. A nil block is a fresh allocation. On
	// error block is left untouched and still owned by the caller.
	Reallocate(block []byte, size uint64) ([]byte, error)
	// Free releases block. Nil and zero-capacity blocks are ignored.
	Free(block []byte)
}

// maxRequestSize is the largest size a slice length can hold.
const maxRequestSize = uint64(math.MaxInt)

// zeroBlock is handed out for zero-size requests by allocators that have no
// natural zero-size object.
var zeroBlock = make([]byte, 0)
