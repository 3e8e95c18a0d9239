// Copyright 2019 PingCAP, Inc.
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

package types

import (
	"fmt"
	"math"
	"strconv"
)

// Datatype is the 4-bit tag stored in the top bits of an Id.
type Datatype uint8

// Datatypes of an Id.
const (
	KindUndefined Datatype = iota
	KindNoMatch
	KindBool
	KindInt
	KindDouble
	KindVocabIndex
	KindLocalVocabIndex
	KindTextRecordIndex
	KindGeoPoint
)

const (
	numDatatypeBits = 4
	numPayloadBits  = 64 - numDatatypeBits
	payloadMask     = uint64(1)<<numPayloadBits - 1

	// MaxInt is the largest integer representable in an Id.
	MaxInt int64 = 1<<(numPayloadBits-1) - 1
	// MinInt is the smallest integer representable in an Id.
	MinInt int64 = -(1 << (numPayloadBits - 1))

	localVocabSetBits    = 28
	localVocabOffsetBits = 32
	// MaxLocalVocabSetID is the largest word set id that fits into a LocalVocabIndex.
	MaxLocalVocabSetID = uint32(1)<<localVocabSetBits - 1

	geoCoordBits = 30
	geoCoordMax  = uint64(1)<<geoCoordBits - 1
)

var datatypeNames = [...]string{
	KindUndefined:       "Undefined",
	KindNoMatch:         "NoMatch",
	KindBool:            "Bool",
	KindInt:             "Int",
	KindDouble:          "Double",
	KindVocabIndex:      "VocabIndex",
	KindLocalVocabIndex: "LocalVocabIndex",
	KindTextRecordIndex: "TextRecordIndex",
	KindGeoPoint:        "GeoPoint",
}

func (d Datatype) String() string {
	if int(d) < len(datatypeNames) {
		return datatypeNames[d]
	}
	return "Datatype(" + strconv.Itoa(int(d)) + ")"
}

// rank is the position of a datatype in the total order of Ids. Int and
// Double share a rank and are compared by numeric value.
var rank = [...]uint8{
	KindUndefined:       0,
	KindNoMatch:         1,
	KindBool:            2,
	KindInt:             3,
	KindDouble:          3,
	KindVocabIndex:      4,
	KindLocalVocabIndex: 5,
	KindTextRecordIndex: 6,
	KindGeoPoint:        7,
}

// Id is a 64 bit tagged value: 4 bits of datatype followed by 60 bits of
// payload. The zero value is Undefined.
type Id uint64

var (
	// Undef is the unbound value.
	Undef = Id(0)
	// NoMatchID pads the right columns of optional join rows without a partner.
	NoMatchID = makeID(KindNoMatch, 0)
)

func makeID(kind Datatype, payload uint64) Id {
	return Id(uint64(kind)<<numPayloadBits | payload&payloadMask)
}

// NewBool creates a Bool Id.
func NewBool(b bool) Id {
	if b {
		return makeID(KindBool, 1)
	}
	return makeID(KindBool, 0)
}

// NewInt creates an Int Id. Values outside [MinInt, MaxInt] wrap around.
func NewInt(v int64) Id {
	return makeID(KindInt, uint64(v))
}

// NewDouble creates a Double Id. The 4 least significant mantissa bits are lost.
func NewDouble(f float64) Id {
	return makeID(KindDouble, math.Float64bits(f)>>numDatatypeBits)
}

// NewVocabIndex creates an Id pointing into the global vocabulary.
func NewVocabIndex(idx uint64) Id {
	return makeID(KindVocabIndex, idx)
}

// NewLocalVocabIndex creates an Id pointing to word offset of the word set setID.
func NewLocalVocabIndex(setID uint32, offset uint32) Id {
	return makeID(KindLocalVocabIndex, uint64(setID)<<localVocabOffsetBits|uint64(offset))
}

// NewTextRecordIndex creates an Id of a text record.
func NewTextRecordIndex(idx uint64) Id {
	return makeID(KindTextRecordIndex, idx)
}

// NewGeoPoint creates a GeoPoint Id. Coordinates are clamped to their valid
// range and quantised to 30 bits each.
func NewGeoPoint(lat, lng float64) Id {
	la := quantise(lat, 90)
	lo := quantise(lng, 180)
	return makeID(KindGeoPoint, la<<geoCoordBits|lo)
}

func quantise(v, bound float64) uint64 {
	if v < -bound {
		v = -bound
	} else if v > bound {
		v = bound
	}
	return uint64(math.Round((v + bound) / (2 * bound) * float64(geoCoordMax)))
}

func dequantise(q uint64, bound float64) float64 {
	return float64(q)/float64(geoCoordMax)*(2*bound) - bound
}

// Datatype returns the tag of the Id.
func (id Id) Datatype() Datatype {
	return Datatype(uint64(id) >> numPayloadBits)
}

func (id Id) payload() uint64 {
	return uint64(id) & payloadMask
}

// IsUndefined reports whether id is the Undefined value.
func (id Id) IsUndefined() bool {
	return id == Undef
}

// IsUnbound reports whether id carries no value, that is Undefined or NoMatch.
func (id Id) IsUnbound() bool {
	return id == Undef || id == NoMatchID
}

// IsNumeric reports whether id is an Int or a Double.
func (id Id) IsNumeric() bool {
	k := id.Datatype()
	return k == KindInt || k == KindDouble
}

// Bool returns the payload of a Bool Id.
func (id Id) Bool() bool {
	return id.payload() != 0
}

// Int returns the payload of an Int Id, sign extended.
func (id Id) Int() int64 {
	return int64(uint64(id)<<numDatatypeBits) >> numDatatypeBits
}

// Double returns the payload of a Double Id.
func (id Id) Double() float64 {
	return math.Float64frombits(id.payload() << numDatatypeBits)
}

// VocabIndex returns the payload of a VocabIndex Id.
func (id Id) VocabIndex() uint64 {
	return id.payload()
}

// LocalVocabIndex returns the word set id and the offset of a LocalVocabIndex Id.
func (id Id) LocalVocabIndex() (setID uint32, offset uint32) {
	p := id.payload()
	return uint32(p >> localVocabOffsetBits), uint32(p)
}

// TextRecordIndex returns the payload of a TextRecordIndex Id.
func (id Id) TextRecordIndex() uint64 {
	return id.payload()
}

// GeoPoint returns the quantised coordinates of a GeoPoint Id.
func (id Id) GeoPoint() (lat, lng float64) {
	p := id.payload()
	return dequantise(p>>geoCoordBits, 90), dequantise(p&geoCoordMax, 180)
}

// ToFloat returns the numeric value of id as float64. ok is false if id is
// not numeric.
func (id Id) ToFloat() (f float64, ok bool) {
	switch id.Datatype() {
	case KindInt:
		return float64(id.Int()), true
	case KindDouble:
		return id.Double(), true
	}
	return 0, false
}

// Compare returns -1, 0 or 1. It defines the total order of Ids: by datatype
// rank first, numerics by value with Int before Double on ties and NaN last,
// everything else by payload. Compare returns 0 iff the Ids are bit equal.
// VocabIndex and LocalVocabIndex values are ordered by index, not by word,
// and a local word never equals a vocabulary word.
func (id Id) Compare(other Id) int {
	if id == other {
		return 0
	}
	lk, rk := id.Datatype(), other.Datatype()
	lr, rr := kindRank(lk), kindRank(rk)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}
	if lk == KindInt && rk == KindInt {
		return compareInt64(id.Int(), other.Int())
	}
	if lk == KindInt || lk == KindDouble {
		return compareNumeric(id, other)
	}
	if lk != rk {
		// Unknown datatypes share no rank; fall back to the tag.
		return compareUint64(uint64(lk), uint64(rk))
	}
	return compareUint64(id.payload(), other.payload())
}

// Less is shorthand for Compare(other) < 0.
func (id Id) Less(other Id) bool {
	return id.Compare(other) < 0
}

func kindRank(k Datatype) uint8 {
	if int(k) < len(rank) {
		return rank[k]
	}
	return math.MaxUint8
}

func compareNumeric(l, r Id) int {
	lf, _ := l.ToFloat()
	rf, _ := r.ToFloat()
	lNaN, rNaN := math.IsNaN(lf), math.IsNaN(rf)
	switch {
	case lNaN && rNaN:
		return compareUint64(l.payload(), r.payload())
	case lNaN:
		return 1
	case rNaN:
		return -1
	case lf < rf:
		return -1
	case lf > rf:
		return 1
	}
	lk, rk := l.Datatype(), r.Datatype()
	if lk != rk {
		if lk == KindInt {
			return -1
		}
		return 1
	}
	if lk == KindInt {
		return compareInt64(l.Int(), r.Int())
	}
	// -0.0 and 0.0
	return compareUint64(uint64(l), uint64(r))
}

func compareInt64(l, r int64) int {
	if l < r {
		return -1
	}
	if l > r {
		return 1
	}
	return 0
}

func compareUint64(l, r uint64) int {
	if l < r {
		return -1
	}
	if l > r {
		return 1
	}
	return 0
}

// String implements fmt.Stringer.
func (id Id) String() string {
	switch id.Datatype() {
	case KindUndefined:
		return "U"
	case KindNoMatch:
		return "NoMatch"
	case KindBool:
		return strconv.FormatBool(id.Bool())
	case KindInt:
		return strconv.FormatInt(id.Int(), 10)
	case KindDouble:
		return strconv.FormatFloat(id.Double(), 'g', -1, 64)
	case KindVocabIndex:
		return "V:" + strconv.FormatUint(id.VocabIndex(), 10)
	case KindLocalVocabIndex:
		set, off := id.LocalVocabIndex()
		return fmt.Sprintf("L:%d:%d", set, off)
	case KindTextRecordIndex:
		return "T:" + strconv.FormatUint(id.TextRecordIndex(), 10)
	case KindGeoPoint:
		lat, lng := id.GeoPoint()
		return fmt.Sprintf("POINT(%g %g)", lng, lat)
	}
	return fmt.Sprintf("Id(%#x)", uint64(id))
}
