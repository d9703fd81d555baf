// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package joinpath

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ebay/joinpath/mal"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input string) *mal.Block {
	t.Helper()
	blk, err := mal.Parse(input)
	require.NoError(t, err)
	return blk
}

// assertProgram compares the block with the expected program text.
func assertProgram(t *testing.T, expected string, blk *mal.Block) {
	t.Helper()
	expected = strings.TrimLeft(expected, "\n")
	if diff := cmp.Diff(expected, blk.String()); diff != "" {
		t.Errorf("program mismatch (-want +got):\n%s", diff)
	}
}

const sharedPairProgram = `
function user.main(X:bat[:oid,:oid], Y:bat[:oid,:oid], Z:bat[:oid,:int], W:bat[:oid,:str]);
    D := algebra.join(X, Y);
    E := algebra.join(D, Z);
    F := algebra.join(X, Y);
    G := algebra.join(F, W);
end user.main;
`

func Test_Optimize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expActions int
		// Defaults to input, formatted.
		exp string
	}{
		{
			name: "chain",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:int,:str]);
    D := algebra.join(A, B);
    E := algebra.join(D, C);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:int,:str]);
    D:bat[:oid,:int] := algebra.join(A, B);
    E:bat[:oid,:str] := algebra.joinPath(A, B, C);
end user.main;
`,
		},
		{
			name: "long chain",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:oid], G:bat[:oid,:int]);
    D := algebra.join(A, B);
    E := algebra.join(D, C);
    F := algebra.join(E, G);
end user.main;
`,
			// Both fused paths start with (A, B), which is then shared.
			expActions: 4,
			exp: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:oid], G:bat[:oid,:int]);
    D:bat[:oid,:oid] := algebra.join(A, B);
    X_7:bat[:oid,:oid] := algebra.join(A, B);
    E:bat[:oid,:oid] := algebra.join(X_7, C);
    F:bat[:oid,:int] := algebra.joinPath(X_7, C, G);
end user.main;
`,
		},
		{
			name: "producer on the right",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:str,:oid]);
    D := algebra.join(A, B);
    E := algebra.join(C, D);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:str,:oid]);
    D:bat[:oid,:int] := algebra.join(A, B);
    E:bat[:str,:int] := algebra.joinPath(C, A, B);
end user.main;
`,
		},
		{
			name: "void chains with oid",
			input: `
function user.main(A:bat[:oid,:void], B:bat[:oid,:oid], C:bat[:void,:oid], G:bat[:oid,:str]);
    D := algebra.join(A, B);
    E := algebra.join(C, G);
    F := algebra.join(D, E);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:void], B:bat[:oid,:oid], C:bat[:void,:oid], G:bat[:oid,:str]);
    D:bat[:oid,:oid] := algebra.join(A, B);
    E:bat[:void,:str] := algebra.join(C, G);
    F:bat[:oid,:str] := algebra.joinPath(A, B, C, G);
end user.main;
`,
		},
		{
			name: "shared producer is not fused",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:int]);
    D := algebra.join(A, B);
    E := algebra.join(D, C);
    F := algebra.join(D, C);
end user.main;
`,
			expActions: 0,
		},
		{
			name: "kinds do not mix",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:int]);
    D := algebra.join(A, B);
    E := algebra.leftjoin(D, C);
end user.main;
`,
			expActions: 0,
		},
		{
			name: "left join chain",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:int]);
    D := algebra.leftjoin(A, B);
    E := algebra.leftjoin(D, C);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:int]);
    D:bat[:oid,:oid] := algebra.leftjoin(A, B);
    E:bat[:oid,:int] := algebra.leftjoinPath(A, B, C);
end user.main;
`,
		},
		{
			name: "semijoin chain keeps the first operand's type",
			input: `
function user.main(A:bat[:oid,:int], B:bat[:oid,:str], C:bat[:oid,:dbl]);
    D := algebra.semijoin(A, B);
    E := algebra.semijoin(D, C);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:int], B:bat[:oid,:str], C:bat[:oid,:dbl]);
    D:bat[:oid,:int] := algebra.semijoin(A, B);
    E:bat[:oid,:int] := algebra.semijoinPath(A, B, C);
end user.main;
`,
		},
		{
			name: "type mismatch is local",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:str,:str], P:bat[:oid,:oid], Q:bat[:oid,:oid], R:bat[:oid,:lng]);
    D := algebra.join(A, B);
    E := algebra.join(D, C);
    S := algebra.join(P, Q);
    T := algebra.join(S, R);
end user.main;
`,
			expActions: 1,
			exp: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:str,:str], P:bat[:oid,:oid], Q:bat[:oid,:oid], R:bat[:oid,:lng]);
    D:bat[:oid,:int] := algebra.join(A, B);
    E:bat[:oid,:str] := algebra.join(D, C);
    S:bat[:oid,:oid] := algebra.join(P, Q);
    T:bat[:oid,:lng] := algebra.joinPath(P, Q, R);
end user.main;
`,
		},
		{
			name:       "shared pair",
			input:      sharedPairProgram,
			expActions: 4,
			exp: `
function user.main(X:bat[:oid,:oid], Y:bat[:oid,:oid], Z:bat[:oid,:int], W:bat[:oid,:str]);
    D:bat[:oid,:oid] := algebra.join(X, Y);
    X_8:bat[:oid,:oid] := algebra.join(X, Y);
    E:bat[:oid,:int] := algebra.join(X_8, Z);
    F:bat[:oid,:oid] := algebra.join(X, Y);
    G:bat[:oid,:str] := algebra.join(X_8, W);
end user.main;
`,
		},
		{
			name: "existing paths are not shared without fusion",
			input: `
function user.main(X:bat[:oid,:oid], Y:bat[:oid,:oid], Z:bat[:oid,:int], W:bat[:oid,:str]);
    E := algebra.joinPath(X, Y, Z);
    G := algebra.joinPath(X, Y, W);
end user.main;
`,
			expActions: 0,
		},
		{
			name: "inline functions are skipped",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:int,:str]);
    D{inline} := algebra.join(A, B);
    E := algebra.join(D, C);
end user.main;
`,
			expActions: 0,
		},
		{
			name: "other instructions pass through",
			input: `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:int,:str]);
    D := algebra.join(A, B);
    N := aggr.count(D);
    E := algebra.join(D, C);
end user.main;
`,
			expActions: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			blk := mustParse(t, test.input)
			exp := test.exp
			if exp == "" {
				exp = blk.String()
			}
			actions, err := Optimize(context.Background(), blk, Options{})
			require.NoError(t, err)
			assert.Equal(t, test.expActions, actions)
			assertProgram(t, exp, blk)
			assert.NoError(t, blk.Validate())

			// Running the optimizer again finds nothing left to do.
			again, err := Optimize(context.Background(), blk, Options{})
			require.NoError(t, err)
			assert.Equal(t, 0, again)
			assertProgram(t, exp, blk)
		})
	}
}

func Test_Optimize_fuseRollback(t *testing.T) {
	assert := assert.New(t)
	blk := mustParse(t, sharedPairProgram)
	before := blk.String()
	stmts := append([]*mal.Instr(nil), blk.Stmts()...)
	nvars := blk.NumVars()
	blk.SetLimit(2)
	actions, err := Optimize(context.Background(), blk, Options{})
	assert.Equal(0, actions)
	if assert.Error(err) {
		assert.True(errors.Is(err, mal.ErrAllocation), "err: %v", err)
		assert.Contains(err.Error(), "fusing join paths in user.main")
	}
	assertProgram(t, before, blk)
	assert.Equal(nvars, blk.NumVars())
	for i, p := range stmts {
		assert.Same(p, blk.Stmt(i))
		assert.False(p.Freed())
	}
}

func Test_Optimize_subpathRollback(t *testing.T) {
	assert := assert.New(t)
	blk := mustParse(t, sharedPairProgram)
	blk.SetLimit(4)
	actions, err := Optimize(context.Background(), blk, Options{})
	assert.Equal(2, actions, "fusion completed")
	if assert.Error(err) {
		assert.True(errors.Is(err, mal.ErrAllocation), "err: %v", err)
		assert.Contains(err.Error(), "sharing join subpaths in user.main")
	}
	assertProgram(t, `
function user.main(X:bat[:oid,:oid], Y:bat[:oid,:oid], Z:bat[:oid,:int], W:bat[:oid,:str]);
    D:bat[:oid,:oid] := algebra.join(X, Y);
    E:bat[:oid,:int] := algebra.joinPath(X, Y, Z);
    F:bat[:oid,:oid] := algebra.join(X, Y);
    G:bat[:oid,:str] := algebra.joinPath(X, Y, W);
end user.main;
`, blk)
	assert.Equal(8, blk.NumVars(), "variables added by the failed pass are removed")
	assert.NoError(blk.Validate())
}

func Test_Optimize_trace(t *testing.T) {
	logger := logrus.New()
	var buf strings.Builder
	logger.Out = &buf
	logger.SetLevel(logrus.DebugLevel)
	blk := mustParse(t, sharedPairProgram)
	_, err := Optimize(context.Background(), blk, Options{Logger: logger, Trace: true})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "joinPath new instruction E:bat[:oid,:int] := algebra.joinPath(X, Y, Z);")
	assert.Contains(t, out, "joinPath shared subpath X_8:bat[:oid,:oid] := algebra.join(X, Y);")
	assert.Contains(t, out, "joinPath rewritten G:bat[:oid,:str] := algebra.join(X_8, W);")
	assert.Contains(t, out, "joinPath: 2 statements glued, 2 subpaths shared")

	buf.Reset()
	blk = mustParse(t, sharedPairProgram)
	_, err = Optimize(context.Background(), blk, Options{Logger: logger})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
