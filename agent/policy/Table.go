package policy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/vrprl/utils/matutils"
)

// rowTolerance is the tolerance on the sum of a row of a valid Table
const rowTolerance = 1e-6

// Table is the serializable state of a tabular policy. Row s of
// Weights is the distribution over next stops from stop s, with zero
// probability of staying in place. Baseline[s] is the running average
// return observed from stop s, valid only when Observed[s]. Prior holds
// the seeded distribution that stagnating states are reset toward.
// StopIDs are the identifiers of the stops, in index order, that the
// table was built for.
type Table struct {
	Weights  *mat.Dense
	Prior    *mat.Dense
	Baseline []float64
	Observed []bool
	StopIDs  []int
}

// NewTable returns a table with uniform weights over the stops ids
func NewTable(ids []int) *Table {
	n := len(ids)
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				w.Set(i, j, 1/float64(n-1))
			}
		}
	}

	return &Table{
		Weights:  w,
		Prior:    mat.DenseCopyOf(w),
		Baseline: make([]float64, n),
		Observed: make([]bool, n),
		StopIDs:  append([]int(nil), ids...),
	}
}

// Len returns the number of states of the table
func (t *Table) Len() int {
	return len(t.StopIDs)
}

// Row returns a copy of the distribution over next stops from stop s
func (t *Table) Row(s int) []float64 {
	return append([]float64(nil), t.Weights.RawRowView(s)...)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	return &Table{
		Weights:  mat.DenseCopyOf(t.Weights),
		Prior:    mat.DenseCopyOf(t.Prior),
		Baseline: append([]float64(nil), t.Baseline...),
		Observed: append([]bool(nil), t.Observed...),
		StopIDs:  append([]int(nil), t.StopIDs...),
	}
}

// Validate returns an error if the table is malformed: mismatched
// dimensions, or a row of weights or prior that is not a distribution
func (t *Table) Validate() error {
	n := len(t.StopIDs)
	if n < 2 {
		return fmt.Errorf("validate: table has %d states", n)
	}
	if len(t.Baseline) != n || len(t.Observed) != n {
		return fmt.Errorf("validate: %d baselines and %d flags for %d "+
			"states", len(t.Baseline), len(t.Observed), n)
	}

	for name, m := range map[string]*mat.Dense{"weights": t.Weights,
		"prior": t.Prior} {
		if m == nil {
			return fmt.Errorf("validate: missing %v", name)
		}
		if r, c := m.Dims(); r != n || c != n {
			return fmt.Errorf("validate: %v are %dx%d, want %dx%d", name,
				r, c, n, n)
		}
		if err := matutils.RowStochastic(m, rowTolerance); err != nil {
			return fmt.Errorf("validate: %v: %w", name, err)
		}
	}
	return nil
}

// tableData is the wire layout of a Table
type tableData struct {
	Weights  []byte
	Prior    []byte
	Baseline []float64
	Observed []bool
	StopIDs  []int
}

// GobEncode implements the gob.GobEncoder interface
func (t *Table) GobEncode() ([]byte, error) {
	weights, err := t.Weights.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("gobEncode: weights: %w", err)
	}
	prior, err := t.Prior.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("gobEncode: prior: %w", err)
	}

	var buf bytes.Buffer
	err = gob.NewEncoder(&buf).Encode(tableData{
		Weights:  weights,
		Prior:    prior,
		Baseline: t.Baseline,
		Observed: t.Observed,
		StopIDs:  t.StopIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("gobEncode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded table
// is validated.
func (t *Table) GobDecode(in []byte) error {
	var data tableData
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&data); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}

	weights := new(mat.Dense)
	if err := weights.UnmarshalBinary(data.Weights); err != nil {
		return fmt.Errorf("gobDecode: weights: %w", err)
	}
	prior := new(mat.Dense)
	if err := prior.UnmarshalBinary(data.Prior); err != nil {
		return fmt.Errorf("gobDecode: prior: %w", err)
	}

	decoded := Table{
		Weights:  weights,
		Prior:    prior,
		Baseline: data.Baseline,
		Observed: data.Observed,
		StopIDs:  data.StopIDs,
	}
	if err := decoded.Validate(); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	*t = decoded
	return nil
}

// Encode returns the gob encoding of a table
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes a table encoded by Encode
func Decode(data []byte) (*Table, error) {
	t := new(Table)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(t); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return t, nil
}

// normalizeRow scales row s of m to sum to one, with a zero diagonal.
// A row without mass becomes uniform.
func normalizeRow(m *mat.Dense, s int) {
	matutils.NormalizeRow(m.RawRowView(s), s)
}

// renormalize restores row to a distribution after some of its entries
// were adjusted from prev. Entries which were increased never end below
// their previous value and entries which were decreased never end above
// it. Entries which were not increased never end below the smaller of
// their adjusted value and floor. diag is the index of the entry which
// is always zero.
func renormalize(row, prev []float64, diag int, floor float64) {
	var sum, otherAbove, lowMass, incBase, incGain float64
	for j := range row {
		if j == diag {
			row[j] = 0
			continue
		}
		sum += row[j]
		if row[j] > prev[j] {
			incBase += prev[j]
			incGain += row[j] - prev[j]
		} else {
			lo := math.Min(row[j], floor)
			lowMass += lo
			otherAbove += row[j] - lo
		}
	}

	switch {
	case sum > 1:
		excess := sum - 1
		if otherAbove >= excess {
			scale := (otherAbove - excess) / otherAbove
			for j := range row {
				if j != diag && row[j] <= prev[j] {
					lo := math.Min(row[j], floor)
					row[j] = lo + (row[j]-lo)*scale
				}
			}
			return
		}

		// The increases outweigh every other entry: floor the others and
		// shrink the gains
		keep := (1 - incBase - lowMass) / incGain
		for j := range row {
			switch {
			case j == diag:
			case row[j] > prev[j]:
				row[j] = prev[j] + (row[j]-prev[j])*keep
			default:
				row[j] = math.Min(row[j], floor)
			}
		}

	case sum < 1:
		deficit := 1 - sum
		var recvMass float64
		var recv int
		for j := range row {
			if j != diag && row[j] >= prev[j] {
				recvMass += row[j]
				recv++
			}
		}

		for j := range row {
			if j == diag || row[j] < prev[j] {
				continue
			}
			if recvMass > 0 {
				row[j] += deficit * row[j] / recvMass
			} else {
				row[j] += deficit / float64(recv)
			}
		}

		if recv == 0 {
			// Every entry decreased: there is nothing to move mass to
			copy(row, prev)
			row[diag] = 0
		}
	}
}
