// Package datetime implements the OPC-UA DateTime encoding and a
// picosecond-aware clock.
//
// A DateTime is a signed 64-bit count of 100 nanosecond intervals (ticks)
// since 1601-01-01T00:00:00Z. Sub-tick precision is carried separately as a
// picosecond count by the containers that need it.
package datetime

import (
	"math"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/binary"
)

const (
	// TickDuration is the resolution of the DateTime encoding.
	TickDuration = 100 * time.Nanosecond

	// PicosecondsPerTick is the number of picoseconds in one tick.
	PicosecondsPerTick = 100000

	// epochOffsetTicks is the number of ticks between 1601-01-01 and 1970-01-01.
	epochOffsetTicks int64 = 116444736000000000
)

// Epoch is the zero instant of the DateTime encoding.
var Epoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// maxTime is the latest instant representable in ticks.
var maxTime = FromTicks(math.MaxInt64)

// ToTicks converts t to ticks since Epoch. Sub-tick nanoseconds are
// truncated. Instants before Epoch clamp to 0 and instants past the
// representable range clamp to math.MaxInt64.
func ToTicks(t time.Time) int64 {
	if !t.After(Epoch) {
		return 0
	}
	if !t.Before(maxTime) {
		return math.MaxInt64
	}
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	return sec*10000000 + nsec/100 + epochOffsetTicks
}

// FromTicks converts ticks since Epoch to a UTC time.
func FromTicks(ticks int64) time.Time {
	unixTicks := ticks - epochOffsetTicks
	sec := unixTicks / 10000000
	rem := unixTicks % 10000000
	if rem < 0 {
		sec--
		rem += 10000000
	}
	return time.Unix(sec, rem*100).UTC()
}

// Truncate drops the sub-tick part of t.
func Truncate(t time.Time) time.Time {
	return FromTicks(ToTicks(t))
}

// Encode writes t as a DateTime.
func Encode(w *binary.Writer, t time.Time) {
	w.WriteInt64(ToTicks(t))
}

// Decode reads a DateTime.
func Decode(r *binary.Reader) (time.Time, error) {
	ticks, err := r.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	return FromTicks(ticks), nil
}

// EncodeHighAccuracy writes t as a DateTime, carrying every whole tick
// contained in picoseconds into the tick count. The remainder below one tick
// (picoseconds % PicosecondsPerTick) is not written; containers transmit it
// in their own picoseconds field.
func EncodeHighAccuracy(w *binary.Writer, t time.Time, picoseconds uint32) {
	ticks := ToTicks(t)
	carry := int64(picoseconds / PicosecondsPerTick)
	if ticks > math.MaxInt64-carry {
		ticks = math.MaxInt64
	} else {
		ticks += carry
	}
	w.WriteInt64(ticks)
}

// DecodeHighAccuracy reads a DateTime written by EncodeHighAccuracy. The
// returned instant includes any ticks carried from the picosecond field.
func DecodeHighAccuracy(r *binary.Reader) (time.Time, error) {
	return Decode(r)
}
