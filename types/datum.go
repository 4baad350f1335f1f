// Copyright 2024 PingCAP, Inc.
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

package types

import (
	"cmp"
	"fmt"
	"strconv"

	"github.com/pingcap/errors"
)

// Kind constants.
const (
	KindNull byte = iota
	KindInt64
	KindFloat64
	KindString
)

// Datum is a data box holds different kind of data.
type Datum struct {
	k byte
	i int64
	f float64
	s string
}

// NewDatum creates a new Datum from a Go value.
func NewDatum(in any) (d Datum) {
	switch x := in.(type) {
	case nil:
		d.SetNull()
	case int:
		d.SetInt64(int64(x))
	case int64:
		d.SetInt64(x)
	case float64:
		d.SetFloat64(x)
	case string:
		d.SetString(x)
	default:
		panic(fmt.Sprintf("unsupported datum value %T", in))
	}
	return d
}

// NewIntDatum creates a new Datum from an int64 value.
func NewIntDatum(i int64) (d Datum) {
	d.SetInt64(i)
	return d
}

// NewFloat64Datum creates a new Datum from a float64 value.
func NewFloat64Datum(f float64) (d Datum) {
	d.SetFloat64(f)
	return d
}

// NewStringDatum creates a new Datum from a string value.
func NewStringDatum(s string) (d Datum) {
	d.SetString(s)
	return d
}

// Kind gets the kind of the datum.
func (d *Datum) Kind() byte {
	return d.k
}

// IsNull checks if datum is null.
func (d *Datum) IsNull() bool {
	return d.k == KindNull
}

// SetNull sets datum to nil.
func (d *Datum) SetNull() {
	*d = Datum{}
}

// GetInt64 gets int64 value.
func (d *Datum) GetInt64() int64 {
	return d.i
}

// SetInt64 sets int64 value.
func (d *Datum) SetInt64(i int64) {
	*d = Datum{k: KindInt64, i: i}
}

// GetFloat64 gets float64 value.
func (d *Datum) GetFloat64() float64 {
	return d.f
}

// SetFloat64 sets float64 value.
func (d *Datum) SetFloat64(f float64) {
	*d = Datum{k: KindFloat64, f: f}
}

// GetString gets string value.
func (d *Datum) GetString() string {
	return d.s
}

// SetString sets string value.
func (d *Datum) SetString(s string) {
	*d = Datum{k: KindString, s: s}
}

// GetValue gets the boxed value of the datum.
func (d *Datum) GetValue() any {
	switch d.k {
	case KindInt64:
		return d.i
	case KindFloat64:
		return d.f
	case KindString:
		return d.s
	}
	return nil
}

// Compare compares datum to another datum. NULL is smaller than every
// other value. Numeric kinds compare by value.
func (d *Datum) Compare(ad *Datum) int {
	switch {
	case d.k == KindNull && ad.k == KindNull:
		return 0
	case d.k == KindNull:
		return -1
	case ad.k == KindNull:
		return 1
	}
	switch d.k {
	case KindInt64:
		if ad.k == KindInt64 {
			return cmp.Compare(d.i, ad.i)
		}
		if ad.k == KindFloat64 {
			return cmp.Compare(float64(d.i), ad.f)
		}
	case KindFloat64:
		if ad.k == KindFloat64 {
			return cmp.Compare(d.f, ad.f)
		}
		if ad.k == KindInt64 {
			return cmp.Compare(d.f, float64(ad.i))
		}
	case KindString:
		if ad.k == KindString {
			return cmp.Compare(d.s, ad.s)
		}
	}
	return cmp.Compare(d.k, ad.k)
}

// ConvertTo converts the datum to the evaluation type of the target field.
func (d *Datum) ConvertTo(target *FieldType) (Datum, error) {
	if d.IsNull() {
		return Datum{}, nil
	}
	switch target.EvalType() {
	case ETInt:
		switch d.k {
		case KindInt64:
			return *d, nil
		case KindFloat64:
			return NewIntDatum(int64(d.f)), nil
		case KindString:
			i, err := strconv.ParseInt(d.s, 10, 64)
			if err != nil {
				return Datum{}, errors.Annotatef(err, "convert %q to int", d.s)
			}
			return NewIntDatum(i), nil
		}
	case ETReal:
		switch d.k {
		case KindInt64:
			return NewFloat64Datum(float64(d.i)), nil
		case KindFloat64:
			return *d, nil
		case KindString:
			f, err := strconv.ParseFloat(d.s, 64)
			if err != nil {
				return Datum{}, errors.Annotatef(err, "convert %q to real", d.s)
			}
			return NewFloat64Datum(f), nil
		}
	case ETString:
		return NewStringDatum(d.String()), nil
	}
	return Datum{}, errors.Errorf("cannot convert datum kind %d to %s", d.k, target)
}

// String implements fmt.Stringer interface.
func (d Datum) String() string {
	switch d.k {
	case KindInt64:
		return strconv.FormatInt(d.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(d.f, 'g', -1, 64)
	case KindString:
		return d.s
	}
	return "<nil>"
}

// MakeDatums creates datum slice from interfaces.
func MakeDatums(args ...any) []Datum {
	datums := make([]Datum, len(args))
	for i, v := range args {
		datums[i] = NewDatum(v)
	}
	return datums
}
