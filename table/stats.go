// Copyright 2024 Leon Chen

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Describe summarizes the numeric columns of the table: one row per Int or
// Float column with the count of non-null values, mean, sample standard
// deviation, min and max. Columns with fewer than two values report zero
// standard deviation; columns with no values report null statistics.
func (t *Table) Describe() *Table {
	d := New(
		Column{Name: "column", Type: TypeString},
		Column{Name: "count", Type: TypeInt},
		Column{Name: "mean", Type: TypeFloat},
		Column{Name: "std", Type: TypeFloat},
		Column{Name: "min", Type: TypeFloat},
		Column{Name: "max", Type: TypeFloat},
	)
	for i, c := range t.columns {
		if c.Type != TypeInt && c.Type != TypeFloat {
			continue
		}
		var xs []float64
		for _, r := range t.rows {
			switch v := r[i].(type) {
			case int64:
				xs = append(xs, float64(v))
			case float64:
				xs = append(xs, v)
			}
		}
		row := []Value{c.Name, int64(len(xs)), nil, nil, nil, nil}
		if len(xs) > 0 {
			std := 0.0
			if len(xs) > 1 {
				std = stat.StdDev(xs, nil)
			}
			row = []Value{c.Name, int64(len(xs)), stat.Mean(xs, nil), std,
				floats.Min(xs), floats.Max(xs)}
		}
		d.rows = append(d.rows, row)
	}
	return d
}
