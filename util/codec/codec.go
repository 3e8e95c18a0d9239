// Copyright 2015 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"github.com/ad-freiburg/qlever-sub009/types"
	"github.com/ad-freiburg/qlever-sub009/util/idtable"
	"github.com/pingcap/errors"
)

// EncodeIDs appends the encoding of ids to b. Two tuples of the same length
// have the same encoding iff they are bit equal.
func EncodeIDs(b []byte, ids ...types.Id) []byte {
	for _, id := range ids {
		b = EncodeUint(b, uint64(id))
	}
	return b
}

// EncodeRowKey appends the encoding of the columns cols of row to b.
func EncodeRowKey(b []byte, row idtable.Row, cols []int) []byte {
	for _, c := range cols {
		b = EncodeUint(b, uint64(row.At(c)))
	}
	return b
}

// DecodeIDs decodes n Ids encoded by EncodeIDs and appends them to ids.
func DecodeIDs(b []byte, n int, ids []types.Id) ([]byte, []types.Id, error) {
	for i := 0; i < n; i++ {
		var (
			v   uint64
			err error
		)
		b, v, err = DecodeUint(b)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		ids = append(ids, types.Id(v))
	}
	return b, ids, nil
}

// EncodeRowIdx encodes a row index as a map value.
func EncodeRowIdx(b []byte, idx int) []byte {
	return EncodeVarint(b, int64(idx))
}

// DecodeRowIdx decodes a row index encoded by EncodeRowIdx.
func DecodeRowIdx(b []byte) (int, error) {
	_, v, err := DecodeVarint(b)
	return int(v), errors.Trace(err)
}
