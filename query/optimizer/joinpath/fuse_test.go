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
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_fusePaths_multipleResults(t *testing.T) {
	blk := mustParse(t, `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:int]);
    (D, M) := algebra.join(A, B);
    E := algebra.join(D, C);
end user.main;
`)
	before := blk.String()
	actions, err := fusePaths(blk, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, actions)
	assertProgram(t, before, blk)
}

func Test_fusePaths_bothSides(t *testing.T) {
	blk := mustParse(t, `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:oid], G:bat[:oid,:int]);
    D := algebra.join(A, B);
    E := algebra.join(C, G);
    F := algebra.join(D, E);
end user.main;
`)
	stmts := blk.Stmts()
	d, e := stmts[0], stmts[1]
	actions, err := fusePaths(blk, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, actions)
	assertProgram(t, `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:oid], C:bat[:oid,:oid], G:bat[:oid,:int]);
    D:bat[:oid,:oid] := algebra.join(A, B);
    E:bat[:oid,:int] := algebra.join(C, G);
    F:bat[:oid,:int] := algebra.joinPath(A, B, C, G);
end user.main;
`, blk)
	// Producers are carried over, not copied.
	assert.Same(t, d, blk.Stmt(0))
	assert.Same(t, e, blk.Stmt(1))
}

func Test_fusePaths_typeMismatchTrace(t *testing.T) {
	logger := logrus.New()
	var buf strings.Builder
	logger.Out = &buf
	logger.SetLevel(logrus.DebugLevel)
	blk := mustParse(t, `
function user.main(A:bat[:oid,:oid], B:bat[:oid,:int], C:bat[:str,:str]);
    D := algebra.join(A, B);
    E := algebra.join(D, C);
end user.main;
`)
	actions, err := fusePaths(blk, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, actions)
	out := buf.String()
	assert.Contains(t, out, "joinPath type mismatch, keeping E:bat[:oid,:str] := algebra.join(D, C);")
	assert.Contains(t, out, "left=\"bat[:oid,:int]\"")
	assert.Contains(t, out, "right=\"bat[:str,:str]\"")
	assert.NotContains(t, out, "new instruction")
}
